package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/model"
)

func TestResolveRendersSlotsInPositionOrder(t *testing.T) {
	plan := model.NewPlan("gcc", nil, []model.Slot{
		{Kind: model.SlotOutput, Path: "bin/app", Prefix: "-o ", Position: 2},
		{Kind: model.SlotInput, Path: "main.c", Position: 1},
		{Kind: model.SlotParameter, Path: "-O2", Position: 3},
	})

	r := Resolve(plan)
	assert.Equal(t, "gcc main.c -o bin/app -O2", r.Command)
	assert.Equal(t, []string{"main.c"}, r.Inputs)
	assert.Equal(t, []string{"bin/app"}, r.Outputs)
}

func TestResultSucceededHonorsSuccessCodes(t *testing.T) {
	plan := model.NewPlan("diff a b", []int{0, 1}, nil)

	assert.True(t, (&Result{ExitCode: 0}).Succeeded(plan))
	assert.True(t, (&Result{ExitCode: 1}).Succeeded(plan))
	assert.False(t, (&Result{ExitCode: 2}).Succeeded(plan))
}

func TestShellExecuteProducesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	dir := t.TempDir()
	plan := model.NewPlan("echo hi >", nil, []model.Slot{
		{Kind: model.SlotOutput, Path: "out.txt", Position: 1},
	})

	res, err := NewShell(dir, nil).Execute(context.Background(), Resolve(plan))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Succeeded(plan))
	assert.Equal(t, []string{"out.txt"}, res.Outputs)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestShellExecuteReportsFailureExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	plan := model.NewPlan("exit 3", nil, nil)

	res, err := NewShell(t.TempDir(), nil).Execute(context.Background(), Resolve(plan))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Succeeded(plan))
	assert.Empty(t, res.Outputs)
}

func TestShellExecuteOmitsMissingOutputs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	plan := model.NewPlan("true", nil, []model.Slot{
		{Kind: model.SlotOutput, Path: "never.txt", Position: 1},
	})

	// The command ignores its rendered argument and writes nothing.
	res, err := NewShell(t.TempDir(), nil).Execute(context.Background(), Resolve(plan))
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
}
