// Package track is the query and execution surface over the stored
// graphs: compare the provenance baseline against the working tree,
// derive what is stale, and re-run it.
package track

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/strata/internal/db"
	"github.com/roach88/strata/internal/graph"
	"github.com/roach88/strata/internal/model"
	"github.com/roach88/strata/internal/oid"
	"github.com/roach88/strata/internal/runner"
	"github.com/roach88/strata/internal/storage"
	"github.com/roach88/strata/internal/vcs"
)

// Tracker ties one open Database to its two graph singletons, a
// revisioner for checksums, and an engine for execution. One Tracker per
// open repository; it is not safe for concurrent use.
type Tracker struct {
	db       *db.Database
	dep      *graph.Dependency
	prov     *graph.Provenance
	rev      vcs.Revisioner
	engine   runner.Engine
	log      *zap.Logger
	revision string
}

type Option func(*Tracker)

func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

func WithEngine(engine runner.Engine) Option {
	return func(t *Tracker) { t.engine = engine }
}

// WithRevision pins the staleness baseline comparison to a named
// revision instead of the working tree.
func WithRevision(rev string) Option {
	return func(t *Tracker) { t.revision = rev }
}

// Open loads the dependency and provenance graphs from the database,
// creating empty ones in a fresh repository, and derives the dependency
// edges.
func Open(ctx context.Context, database *db.Database, rev vcs.Revisioner, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		db:       database,
		rev:      rev,
		log:      zap.NewNop(),
		revision: vcs.WorkingTree,
	}
	for _, opt := range opts {
		opt(t)
	}

	dep, err := loadDependency(ctx, database)
	if err != nil {
		return nil, err
	}
	prov, err := loadProvenance(ctx, database)
	if err != nil {
		return nil, err
	}
	t.dep, t.prov = dep, prov
	t.dep.SetLogger(t.log)

	if err := t.dep.Rebuild(ctx, database); err != nil {
		return nil, err
	}
	return t, nil
}

func loadDependency(ctx context.Context, database *db.Database) (*graph.Dependency, error) {
	obj, err := database.Get(ctx, graph.DependencyOID)
	if errors.Is(err, storage.ErrNotFound) {
		g := graph.NewDependency()
		if err := database.Add(g); err != nil {
			return nil, err
		}
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("track: load dependency graph: %w", err)
	}
	g, ok := obj.(*graph.Dependency)
	if !ok {
		return nil, fmt.Errorf("track: object %s is a %s, not a dependency graph", graph.DependencyOID, obj.TypeName())
	}
	return g, nil
}

func loadProvenance(ctx context.Context, database *db.Database) (*graph.Provenance, error) {
	obj, err := database.Get(ctx, graph.ProvenanceOID)
	if errors.Is(err, storage.ErrNotFound) {
		g := graph.NewProvenance()
		if err := database.Add(g); err != nil {
			return nil, err
		}
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("track: load provenance graph: %w", err)
	}
	g, ok := obj.(*graph.Provenance)
	if !ok {
		return nil, fmt.Errorf("track: object %s is a %s, not a provenance graph", graph.ProvenanceOID, obj.TypeName())
	}
	return g, nil
}

// AddPlan registers a plan as a pipeline step. An equivalent existing
// plan is returned instead; a genuinely new plan joins the database and
// the dependency graph. Durable at the next Commit.
func (t *Tracker) AddPlan(plan *model.Plan) (*model.Plan, error) {
	node, err := t.dep.Add(plan)
	if err != nil {
		return nil, err
	}
	if node != plan {
		t.log.Debug("plan already registered", zap.String("command", node.Command()))
		return node, nil
	}
	if err := t.db.Add(plan); err != nil {
		return nil, err
	}
	t.log.Info("plan registered",
		zap.String("command", plan.Command()),
		zap.String("oid", plan.OID().String()))
	return plan, nil
}

// InvalidatePlan soft-deletes a plan. It stays in storage and in the
// provenance log, but leaves the active dependency graph.
func (t *Tracker) InvalidatePlan(ctx context.Context, id oid.OID) error {
	plan := t.dep.Plan(id)
	if plan == nil {
		return fmt.Errorf("track: no active plan %s", id)
	}
	plan.Invalidate(time.Now().UTC())
	return t.dep.Rebuild(ctx, t.db)
}

// Plans returns the active pipeline steps.
func (t *Tracker) Plans() []*model.Plan { return t.dep.Plans() }

// Plan returns the active pipeline step with the given identity, or nil.
func (t *Tracker) Plan(id oid.OID) *model.Plan { return t.dep.Plan(id) }

// Log returns every recorded activity in provenance order.
func (t *Tracker) Log(ctx context.Context) ([]*model.Activity, error) {
	return t.prov.Activities(ctx, t.db)
}

// AffectedPaths answers "what does a change to this path eventually
// affect" across the whole graph.
func (t *Tracker) AffectedPaths(p string) []string { return t.dep.AffectedPaths(p) }

// Commit flushes all pending and modified objects.
func (t *Tracker) Commit(ctx context.Context) error { return t.db.Commit(ctx) }

// Report is the staleness summary for user-facing output.
type Report struct {
	Stale    []string
	Modified []string
	Deleted  []string
}

// Clean reports whether nothing needs to re-run.
func (r Report) Clean() bool {
	return len(r.Stale) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

// Status compares each plan's latest recorded usages against the working
// tree. Inputs whose checksum changed land in Modified; inputs that no
// longer exist land in Deleted. Stale is every path a modified input
// eventually affects; paths downstream of a deleted input are not stale
// because their producers cannot re-run.
func (t *Tracker) Status(ctx context.Context) (Report, error) {
	modified, deleted, err := t.baseline(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	seen := make(map[string]bool)
	addPath := func(dst *[]string, p string) {
		if !seen[p] {
			seen[p] = true
			*dst = append(*dst, p)
		}
	}
	for _, k := range modified {
		addPath(&report.Modified, k.Path)
	}
	seen = make(map[string]bool)
	for _, k := range deleted {
		addPath(&report.Deleted, k.Path)
	}

	seen = make(map[string]bool)
	for _, k := range modified {
		for _, p := range t.dep.DependentPaths(k.PlanID, k.Path) {
			addPath(&report.Stale, p)
		}
	}
	return report, nil
}

// Update derives the plans to execute: stale ones plus plans that have
// never run, in topological order, alongside the blocked ones whose
// recorded inputs no longer exist.
func (t *Tracker) Update(ctx context.Context) (ordered, blocked []*model.Plan, err error) {
	modified, deleted, err := t.baseline(ctx)
	if err != nil {
		return nil, nil, err
	}
	ordered, blocked = t.dep.Downstream(modified, deleted)

	latest, _, err := t.prov.Latest(ctx, t.db)
	if err != nil {
		return nil, nil, err
	}
	need := make(map[oid.OID]bool)
	for _, p := range ordered {
		need[p.OID()] = true
	}
	blockedSet := make(map[oid.OID]bool)
	for _, p := range blocked {
		blockedSet[p.OID()] = true
	}
	for _, p := range t.dep.Plans() {
		if _, ran := latest[p.OID()]; !ran && !blockedSet[p.OID()] {
			need[p.OID()] = true
		}
	}
	return t.dep.Sorted(need), blocked, nil
}

// baseline splits the latest recorded usages into modified and deleted
// sets against the current working tree.
func (t *Tracker) baseline(ctx context.Context) (modified, deleted []graph.UsageKey, err error) {
	usages, err := t.prov.LatestUsages(ctx, t.db)
	if err != nil {
		return nil, nil, err
	}
	for _, u := range usages {
		current, err := t.rev.ChecksumAt(ctx, u.Path, t.revision)
		if errors.Is(err, vcs.ErrNotFound) {
			deleted = append(deleted, graph.UsageKey{PlanID: u.PlanID, Path: u.Path})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("track: checksum %s: %w", u.Path, err)
		}
		if string(current) != u.Checksum {
			modified = append(modified, graph.UsageKey{PlanID: u.PlanID, Path: u.Path})
		}
	}
	return modified, deleted, nil
}
