package planfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/model"
)

const examplePipeline = `
plans: {
	compile: {
		command: "gcc"
		slots: [
			{kind: "input", path: "main.c"},
			{kind: "output", path: "bin/app", prefix: "-o "},
		]
	}
	archive: {
		command: "tar czf"
		success_codes: [0, 1]
		slots: [
			{kind: "output", path: "dist/app.tgz", position: 1},
			{kind: "input", path: "bin/app", position: 2},
		]
	}
}
`

func TestParsePipeline(t *testing.T) {
	plans, err := Parse([]byte(examplePipeline), "pipeline.cue")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	compile := plans[0]
	assert.Equal(t, "gcc", compile.Command())
	assert.Equal(t, []int{0}, compile.SuccessCodes())
	require.Len(t, compile.Slots(), 2)
	assert.Equal(t, model.Slot{Kind: model.SlotInput, Path: "main.c", Position: 1}, compile.Slots()[0])
	assert.Equal(t, model.Slot{Kind: model.SlotOutput, Path: "bin/app", Prefix: "-o ", Position: 2}, compile.Slots()[1])

	archive := plans[1]
	assert.Equal(t, []int{0, 1}, archive.SuccessCodes())
	assert.Equal(t, 1, archive.Slots()[0].Position)
}

func TestParseRejectsMissingCommand(t *testing.T) {
	src := `plans: broken: {slots: [{kind: "input", path: "a.txt"}]}`
	_, err := Parse([]byte(src), "pipeline.cue")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.command", perr.Field)
}

func TestParseRejectsUnknownSlotKind(t *testing.T) {
	src := `plans: broken: {command: "true", slots: [{kind: "sideways", path: "a.txt"}]}`
	_, err := Parse([]byte(src), "pipeline.cue")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "sideways")
}

func TestParseRejectsEmptyPlans(t *testing.T) {
	_, err := Parse([]byte(`plans: {}`), "pipeline.cue")
	require.Error(t, err)

	_, err = Parse([]byte(`other: {}`), "pipeline.cue")
	require.Error(t, err)
}

func TestParseRejectsMissingSlots(t *testing.T) {
	src := `plans: broken: {command: "true"}`
	_, err := Parse([]byte(src), "pipeline.cue")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.slots", perr.Field)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.cue")
	require.NoError(t, os.WriteFile(path, []byte(examplePipeline), 0o644))

	plans, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
}
