// Package graph derives and persists the two graphs built over the object
// store: the dependency graph connecting Plans through path containment,
// and the append-only provenance graph of Activities.
package graph

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/roach88/strata/internal/model"
	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
)

// Persisted type tags and the deterministic identities of the graph
// singletons. One repository has exactly one of each graph, so their oids
// derive from fixed semantic ids.
const (
	TypeDependencyGraph = "DependencyGraph"
	TypeProvenanceGraph = "ProvenanceGraph"

	domainGraph = "strata/graph/v1"
)

var (
	DependencyOID = oid.FromSemantic(domainGraph, "dependency")
	ProvenanceOID = oid.FromSemantic(domainGraph, "provenance")
)

func init() {
	object.RegisterType(TypeDependencyGraph, func() object.Object { return &Dependency{} })
	object.RegisterType(TypeProvenanceGraph, func() object.Object { return &Provenance{} })
}

// Getter resolves an oid to a loaded object. Implemented by the database;
// the graphs hold identifiers, never owning references.
type Getter interface {
	Get(ctx context.Context, id oid.OID) (object.Object, error)
}

// UsageKey names one recorded input of one Plan: the (plan, path) pair the
// staleness comparison works in.
type UsageKey struct {
	PlanID oid.OID
	Path   string
}

// Dependency is a directed graph over Plans. An edge A -> B means an
// output path pattern of A equals, or is a filesystem ancestor of, an
// input path pattern of B: A's products feed B. The node set is persisted;
// adjacency is derived once per load.
type Dependency struct {
	object.Persistent

	log     *zap.Logger
	nodeIDs []oid.OID
	plans   map[oid.OID]*model.Plan
	out     map[oid.OID]map[oid.OID]bool
	in      map[oid.OID]map[oid.OID]bool
}

// NewDependency returns the empty dependency graph for a repository, at
// its fixed identity.
func NewDependency() *Dependency {
	g := &Dependency{}
	g.SetOID(DependencyOID)
	g.reset()
	return g
}

// SetLogger attaches a structured logger. Without one the graph is silent.
func (g *Dependency) SetLogger(log *zap.Logger) { g.log = log }

func (g *Dependency) logger() *zap.Logger {
	if g.log == nil {
		return zap.NewNop()
	}
	return g.log
}

func (g *Dependency) reset() {
	g.plans = make(map[oid.OID]*model.Plan)
	g.out = make(map[oid.OID]map[oid.OID]bool)
	g.in = make(map[oid.OID]map[oid.OID]bool)
}

func (g *Dependency) TypeName() string { return TypeDependencyGraph }

// Rebuild loads the node set and derives all edges from it. Invalidated
// plans stay in the persisted node list but leave the active graph.
// Quadratic in nodes and slots; the node count is the number of distinct
// logical steps in a project, not the number of executions.
func (g *Dependency) Rebuild(ctx context.Context, getter Getter) error {
	g.reset()
	var live []*model.Plan
	for _, id := range g.nodeIDs {
		obj, err := getter.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("graph: load plan %s: %w", id, err)
		}
		plan, ok := obj.(*model.Plan)
		if !ok {
			return fmt.Errorf("graph: node %s is a %s, not a plan", id, obj.TypeName())
		}
		if plan.Invalidated() {
			continue
		}
		live = append(live, plan)
	}
	for _, plan := range live {
		g.plans[plan.OID()] = plan
		g.connect(plan)
	}
	return nil
}

// Plans returns the active nodes in insertion order.
func (g *Dependency) Plans() []*model.Plan {
	var out []*model.Plan
	for _, id := range g.nodeIDs {
		if p, ok := g.plans[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Plan returns the active node with the given identity, or nil.
func (g *Dependency) Plan(id oid.OID) *model.Plan { return g.plans[id] }

// Add inserts a plan as a node, connecting it to all existing nodes in
// both directions, and returns the node representing it.
//
// An equivalent existing plan (same command and slot multiset) is returned
// instead of inserting a duplicate: re-running the same logical step must
// not grow the graph. If a different plan already holds the new plan's
// identifier, the new plan gets a fresh identifier before insertion.
//
// The graph must stay acyclic: an insertion that closes a cycle is rolled
// back and reported as a CycleError naming the cycle.
func (g *Dependency) Add(plan *model.Plan) (*model.Plan, error) {
	for _, id := range g.nodeIDs {
		existing, ok := g.plans[id]
		if ok && existing.EquivalentTo(plan) {
			return existing, nil
		}
	}

	if plan.OID().IsEmpty() {
		plan.SetOID(oid.Random())
	} else if existing, collision := g.plans[plan.OID()]; collision && existing != plan {
		fresh := oid.Random()
		g.logger().Warn("plan identifier collision, assigning fresh identity",
			zap.String("command", plan.Command()),
			zap.String("old_oid", plan.OID().String()),
			zap.String("new_oid", fresh.String()))
		plan.ReplaceOID(fresh)
	}

	id := plan.OID()
	g.nodeIDs = append(g.nodeIDs, id)
	g.plans[id] = plan
	g.connect(plan)

	if cycle := g.findCycle(); cycle != nil {
		g.remove(id)
		names := make([]string, len(cycle))
		for i, cid := range cycle {
			names[i] = g.plans[cid].Command()
		}
		return nil, &CycleError{Nodes: names}
	}

	g.MarkModified()
	return plan, nil
}

// connect derives edges between plan and every existing node, both
// directions.
func (g *Dependency) connect(plan *model.Plan) {
	for _, other := range g.plans {
		if other == plan {
			continue
		}
		if feeds(other, plan) {
			g.addEdge(other.OID(), plan.OID())
		}
		if feeds(plan, other) {
			g.addEdge(plan.OID(), other.OID())
		}
	}
}

func (g *Dependency) addEdge(from, to oid.OID) {
	if g.out[from] == nil {
		g.out[from] = make(map[oid.OID]bool)
	}
	if g.in[to] == nil {
		g.in[to] = make(map[oid.OID]bool)
	}
	g.out[from][to] = true
	g.in[to][from] = true
}

// remove undoes an insertion that violated acyclicity.
func (g *Dependency) remove(id oid.OID) {
	if len(g.nodeIDs) > 0 && g.nodeIDs[len(g.nodeIDs)-1] == id {
		g.nodeIDs = g.nodeIDs[:len(g.nodeIDs)-1]
	}
	delete(g.plans, id)
	for to := range g.out[id] {
		delete(g.in[to], id)
	}
	for from := range g.in[id] {
		delete(g.out[from], id)
	}
	delete(g.out, id)
	delete(g.in, id)
}

// Downstream answers "what must re-run". Seeds are the plans whose
// recorded inputs appear in the modified or deleted usage sets; the result
// expands to all graph descendants. A reached plan consuming a deleted
// path cannot re-run — an input no longer exists — and lands in blocked
// instead. The runnable remainder comes back in topological order so
// producers re-run before consumers.
func (g *Dependency) Downstream(modified, deleted []UsageKey) (ordered, blocked []*model.Plan) {
	deletedPaths := make(map[string]bool, len(deleted))
	for _, k := range deleted {
		deletedPaths[k.Path] = true
	}

	reached := make(map[oid.OID]bool)
	var queue []oid.OID
	seed := func(k UsageKey) {
		p := g.plans[k.PlanID]
		if p == nil || reached[p.OID()] {
			return
		}
		if !consumes(p, k.Path) && !produces(p, k.Path) {
			return
		}
		reached[p.OID()] = true
		queue = append(queue, p.OID())
	}
	for _, k := range modified {
		seed(k)
	}
	for _, k := range deleted {
		seed(k)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for to := range g.out[id] {
			if !reached[to] {
				reached[to] = true
				queue = append(queue, to)
			}
		}
	}

	blockedSet := make(map[oid.OID]bool)
	for id := range reached {
		p := g.plans[id]
		for dp := range deletedPaths {
			if consumes(p, dp) {
				blockedSet[id] = true
				break
			}
		}
	}

	ordered = g.topological(reached, blockedSet)
	for _, id := range g.nodeIDs {
		if blockedSet[id] {
			blocked = append(blocked, g.plans[id])
		}
	}
	return ordered, blocked
}

// topological orders the runnable subset (reached minus blocked) with
// Kahn's algorithm, breaking ties by node insertion order so the result is
// deterministic.
func (g *Dependency) topological(reached, blocked map[oid.OID]bool) []*model.Plan {
	include := func(id oid.OID) bool { return reached[id] && !blocked[id] }

	indegree := make(map[oid.OID]int)
	for _, id := range g.nodeIDs {
		if !include(id) {
			continue
		}
		indegree[id] = 0
	}
	for from := range indegree {
		for to := range g.out[from] {
			if include(to) {
				indegree[to]++
			}
		}
	}

	var out []*model.Plan
	remaining := len(indegree)
	for remaining > 0 {
		progressed := false
		for _, id := range g.nodeIDs {
			deg, ok := indegree[id]
			if !ok || deg != 0 {
				continue
			}
			out = append(out, g.plans[id])
			delete(indegree, id)
			remaining--
			progressed = true
			for to := range g.out[id] {
				if _, in := indegree[to]; in {
					indegree[to]--
				}
			}
		}
		if !progressed {
			// Unreachable while the acyclicity invariant holds.
			break
		}
	}
	return out
}

// DependentPaths collects every output path pattern reachable from the
// node identified by the (plan, path) pair: the files a change to path
// eventually affects through that plan.
func (g *Dependency) DependentPaths(planID oid.OID, p string) []string {
	start := g.plans[planID]
	if start == nil || !(consumes(start, p) || produces(start, p)) {
		return nil
	}

	seen := map[oid.OID]bool{start.OID(): true}
	queue := []oid.OID{start.OID()}
	var paths []string
	havePath := make(map[string]bool)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, slot := range g.plans[id].Outputs() {
			if !havePath[slot.Path] {
				havePath[slot.Path] = true
				paths = append(paths, slot.Path)
			}
		}
		for _, next := range g.nodeIDs {
			if g.out[id][next] && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return paths
}

// Sorted returns the active plans among ids in topological order.
func (g *Dependency) Sorted(ids map[oid.OID]bool) []*model.Plan {
	return g.topological(ids, nil)
}

// AffectedPaths unions DependentPaths over every node whose slots match
// the path. This is the whole-graph answer to "what does a change to this
// path eventually affect" when the caller has no plan in hand.
func (g *Dependency) AffectedPaths(p string) []string {
	var paths []string
	havePath := make(map[string]bool)
	for _, id := range g.nodeIDs {
		plan, ok := g.plans[id]
		if !ok || !(consumes(plan, p) || produces(plan, p)) {
			continue
		}
		for _, dep := range g.DependentPaths(id, p) {
			if !havePath[dep] {
				havePath[dep] = true
				paths = append(paths, dep)
			}
		}
	}
	return paths
}

// findCycle runs a three-color depth-first search over the adjacency and
// returns the first cycle found, in edge order, or nil.
func (g *Dependency) findCycle() []oid.OID {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[oid.OID]int)
	var stack []oid.OID
	var cycle []oid.OID

	var visit func(id oid.OID) bool
	visit = func(id oid.OID) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, to := range g.nodeIDs {
			if !g.out[id][to] {
				continue
			}
			switch color[to] {
			case white:
				if visit(to) {
					return true
				}
			case gray:
				// Cut the stack at the first occurrence of to.
				for i, s := range stack {
					if s == to {
						cycle = append(cycle, stack[i:]...)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.nodeIDs {
		if _, active := g.plans[id]; !active {
			continue
		}
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

func (g *Dependency) Fields() object.Map {
	nodes := make(object.List, len(g.nodeIDs))
	for i, id := range g.nodeIDs {
		nodes[i] = object.Ref{Type: model.TypePlan, OID: id}
	}
	return object.Map{"plans": nodes}
}

func (g *Dependency) SetFields(fields object.Map, r object.Resolver) error {
	g.nodeIDs = nil
	g.reset()
	for _, v := range fields.GetList("plans") {
		ref, ok := v.(object.Ref)
		if !ok {
			continue
		}
		if r != nil {
			if _, err := r.Resolve(ref.Type, ref.OID); err != nil {
				return err
			}
		}
		g.nodeIDs = append(g.nodeIDs, ref.OID)
	}
	return nil
}

// feeds reports whether any output pattern of a contains any input
// pattern of b.
func feeds(a, b *model.Plan) bool {
	for _, out := range a.Outputs() {
		for _, in := range b.Inputs() {
			if pathContains(out.Path, in.Path) {
				return true
			}
		}
	}
	return false
}

// consumes reports whether plan has an input slot matching the concrete
// path: equal, an ancestor directory of it, or a glob pattern it satisfies.
func consumes(plan *model.Plan, p string) bool {
	for _, slot := range plan.Inputs() {
		if slotMatches(slot.Path, p) {
			return true
		}
	}
	return false
}

func produces(plan *model.Plan, p string) bool {
	for _, slot := range plan.Outputs() {
		if slotMatches(slot.Path, p) {
			return true
		}
	}
	return false
}

func slotMatches(pattern, p string) bool {
	if pathContains(pattern, p) {
		return true
	}
	ok, err := doublestar.Match(normalize(pattern), normalize(p))
	return err == nil && ok
}

// pathContains reports whether ancestor equals p or is a filesystem
// ancestor of it.
func pathContains(ancestor, p string) bool {
	a, b := normalize(ancestor), normalize(p)
	return a == b || strings.HasPrefix(b, a+"/")
}

func normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}
