package track

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/db"
	"github.com/roach88/strata/internal/model"
	"github.com/roach88/strata/internal/runner"
	"github.com/roach88/strata/internal/storage"
	"github.com/roach88/strata/internal/vcs"
)

// fakeRev serves checksums from a map. A missing path is a deleted file.
type fakeRev map[string]string

func (f fakeRev) ChecksumAt(_ context.Context, path, _ string) (vcs.Checksum, error) {
	sum, ok := f[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", vcs.ErrNotFound, path)
	}
	return vcs.Checksum(sum), nil
}

// fakeEngine pretends every command succeeds and produces its declared
// outputs, publishing their checksums into the revisioner.
type fakeEngine struct {
	rev      fakeRev
	commands []string
	fail     map[string]bool
}

func (e *fakeEngine) Execute(_ context.Context, resolved runner.Resolved) (*runner.Result, error) {
	e.commands = append(e.commands, resolved.Command)
	if e.fail[resolved.Plan.Command()] {
		return &runner.Result{ExitCode: 1, Stderr: "boom"}, nil
	}
	for _, out := range resolved.Outputs {
		e.rev[out] = "sum-of-" + out
	}
	return &runner.Result{ExitCode: 0, Outputs: resolved.Outputs}, nil
}

func pipelinePlan(cmd, in, out string) *model.Plan {
	slots := []model.Slot{{Kind: model.SlotOutput, Path: out, Position: 2}}
	if in != "" {
		slots = append(slots, model.Slot{Kind: model.SlotInput, Path: in, Position: 1})
	}
	return model.NewPlan(cmd, nil, slots)
}

// fixture builds a two-step pipeline: step A turns src.txt into out1,
// step B turns out1 into out2.
func fixture(t *testing.T) (*Tracker, *db.Database, *storage.Memory, fakeRev, *fakeEngine, *model.Plan, *model.Plan) {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemory()
	database, err := db.Open(ctx, store)
	require.NoError(t, err)

	rev := fakeRev{"src.txt": "v1"}
	engine := &fakeEngine{rev: rev, fail: map[string]bool{}}
	tracker, err := Open(ctx, database, rev, WithEngine(engine))
	require.NoError(t, err)

	a, err := tracker.AddPlan(pipelinePlan("cat", "src.txt", "out1"))
	require.NoError(t, err)
	b, err := tracker.AddPlan(pipelinePlan("tr a-z A-Z <", "out1", "out2"))
	require.NoError(t, err)

	return tracker, database, store, rev, engine, a, b
}

func TestFirstRunExecutesWholePipelineInOrder(t *testing.T) {
	ctx := context.Background()
	tracker, _, _, _, engine, a, b := fixture(t)

	report, err := tracker.Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Executions, 2)
	assert.Same(t, a, report.Executions[0].Plan)
	assert.Same(t, b, report.Executions[1].Plan)
	assert.Empty(t, report.Blocked)
	assert.Len(t, engine.commands, 2)

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Clean())
}

func TestRunIsIdempotentWhenNothingChanged(t *testing.T) {
	ctx := context.Background()
	tracker, _, _, _, engine, _, _ := fixture(t)

	_, err := tracker.Run(ctx)
	require.NoError(t, err)
	require.Len(t, engine.commands, 2)

	report, err := tracker.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Executions)
	assert.Len(t, engine.commands, 2, "nothing re-executed")
}

func TestModifiedInputMakesDownstreamStale(t *testing.T) {
	ctx := context.Background()
	tracker, _, _, rev, _, a, b := fixture(t)

	_, err := tracker.Run(ctx)
	require.NoError(t, err)

	rev["src.txt"] = "v2"

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src.txt"}, status.Modified)
	assert.Empty(t, status.Deleted)
	assert.Equal(t, []string{"out1", "out2"}, status.Stale)

	ordered, blocked, err := tracker.Update(ctx)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Same(t, a, ordered[0])
	assert.Same(t, b, ordered[1])
	assert.Empty(t, blocked)
}

func TestDeletedInputBlocksConsumerNotStale(t *testing.T) {
	ctx := context.Background()
	tracker, _, _, rev, _, _, b := fixture(t)

	_, err := tracker.Run(ctx)
	require.NoError(t, err)

	delete(rev, "out1")

	status, err := tracker.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"out1"}, status.Deleted)
	assert.Empty(t, status.Modified)
	assert.Empty(t, status.Stale, "paths downstream of a deleted input are blocked, not stale")

	ordered, blocked, err := tracker.Update(ctx)
	require.NoError(t, err)
	assert.Empty(t, ordered)
	require.Len(t, blocked, 1)
	assert.Same(t, b, blocked[0])
}

func TestRunRecordsUsagesGenerationsAndEntities(t *testing.T) {
	ctx := context.Background()
	tracker, database, _, _, _, a, _ := fixture(t)

	report, err := tracker.Run(ctx)
	require.NoError(t, err)

	first := report.Executions[0].Activity
	assert.Equal(t, a.OID(), first.PlanID())
	require.Len(t, first.Usages(), 1)
	assert.Equal(t, model.Usage{Path: "src.txt", Checksum: "v1"}, first.Usages()[0])
	require.Len(t, first.Generations(), 1)
	assert.Equal(t, model.Generation{Path: "out1", Checksum: "sum-of-out1"}, first.Generations()[0])

	assert.Len(t, database.Roots(model.TypeActivity), 2)
	assert.Len(t, database.Roots(model.TypeEntity), 2)
	assert.Len(t, database.Roots(model.TypePlan), 2)
}

func TestFailedPlanStopsRunAndResumes(t *testing.T) {
	ctx := context.Background()
	tracker, _, _, _, engine, _, b := fixture(t)

	engine.fail[b.Command()] = true
	report, err := tracker.Run(ctx)
	require.Error(t, err)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.ExitCode)
	require.Len(t, report.Executions, 1, "the first step finished before the failure")

	// Fix the failing step; only it re-runs.
	delete(engine.fail, b.Command())
	ran := len(engine.commands)
	report, err = tracker.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Executions, 1)
	assert.Same(t, b, report.Executions[0].Plan)
	assert.Len(t, engine.commands, ran+1)
}

func TestReopenedRepositoryKeepsGraphs(t *testing.T) {
	ctx := context.Background()
	tracker, _, store, rev, engine, a, _ := fixture(t)

	_, err := tracker.Run(ctx)
	require.NoError(t, err)

	database2, err := db.Open(ctx, store)
	require.NoError(t, err)
	tracker2, err := Open(ctx, database2, rev, WithEngine(engine))
	require.NoError(t, err)

	assert.Len(t, tracker2.Plans(), 2)

	status, err := tracker2.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Clean())

	rev["src.txt"] = "v2"
	ordered, _, err := tracker2.Update(ctx)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, a.OID(), ordered[0].OID())

	log, err := tracker2.Log(ctx)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Less(t, log[0].Order(), log[1].Order())
}

func TestInvalidatedPlanLeavesPipeline(t *testing.T) {
	ctx := context.Background()
	tracker, _, _, rev, _, a, b := fixture(t)

	_, err := tracker.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, tracker.InvalidatePlan(ctx, b.OID()))
	assert.Len(t, tracker.Plans(), 1)

	rev["src.txt"] = "v2"
	ordered, blocked, err := tracker.Update(ctx)
	require.NoError(t, err)
	require.Len(t, ordered, 1)
	assert.Equal(t, a.OID(), ordered[0].OID())
	assert.Empty(t, blocked)
}

// revMap serves checksums per (revision, path).
type revMap map[string]map[string]string

func (r revMap) ChecksumAt(_ context.Context, path, revision string) (vcs.Checksum, error) {
	sum, ok := r[revision][path]
	if !ok {
		return "", fmt.Errorf("%w: %s@%s", vcs.ErrNotFound, path, revision)
	}
	return vcs.Checksum(sum), nil
}

func TestStatusAgainstNamedRevision(t *testing.T) {
	ctx := context.Background()
	tracker, _, store, rev, engine, _, _ := fixture(t)

	_, err := tracker.Run(ctx)
	require.NoError(t, err)

	// At the named revision src.txt had different contents; the working
	// tree still matches the recorded baseline.
	revs := revMap{
		vcs.WorkingTree: map[string]string(rev),
		"v1.0":          {"src.txt": "older", "out1": rev["out1"], "out2": rev["out2"]},
	}

	database2, err := db.Open(ctx, store)
	require.NoError(t, err)
	pinned, err := Open(ctx, database2, revs, WithEngine(engine), WithRevision("v1.0"))
	require.NoError(t, err)

	status, err := pinned.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"src.txt"}, status.Modified)
}

func TestAffectedPathsWalksPipeline(t *testing.T) {
	tracker, _, _, _, _, _, _ := fixture(t)

	assert.Equal(t, []string{"out1", "out2"}, tracker.AffectedPaths("src.txt"))
	assert.Equal(t, []string{"out1", "out2"}, tracker.AffectedPaths("out1"))
	assert.Empty(t, tracker.AffectedPaths("unrelated.txt"))
}
