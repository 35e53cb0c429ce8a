package dragdrop_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/dragdrop"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

var (
	gitleak = catalog.Tool{
		Name:      "GitLeak",
		ImagePath: "/img/gitleak.png",
		Config:    catalog.ToolConfig{Type: "Secret Scanning", Target: 4, Analytics: 7},
	}
	snyk = catalog.Tool{
		Name:      "Snyk",
		ImagePath: "/img/snyk.png",
		Config:    catalog.ToolConfig{Type: "SCA", Target: 1, Analytics: 2},
	}
)

func setup(t *testing.T) (*flow.Graph, *dragdrop.Engine, *flow.Node, *flow.Node) {
	t.Helper()
	g := flow.New()
	a := g.AddNode(flow.Template{Stage: flow.StageSecretScanning})
	b := g.AddNode(flow.Template{Stage: flow.StageSCA})
	return g, dragdrop.New(g, nil), a, b
}

func TestDrop_MatchingStageAssigns(t *testing.T) {
	_, eng, a, _ := setup(t)

	require.NoError(t, eng.StartFromPalette(gitleak))
	assert.Equal(t, dragdrop.Dragging, eng.State())

	res, err := eng.Drop(a.ID, dragdrop.EffectCopy)
	require.NoError(t, err)
	assert.Equal(t, dragdrop.Idle, eng.State())
	assert.Equal(t, a.ID, res.TargetID)
	assert.False(t, res.Unchanged)

	assert.True(t, a.HasImage)
	assert.Equal(t, gitleak.Name, a.AssignedTool)
	assert.Equal(t, gitleak.ImagePath, a.CurrentImage)
	assert.Equal(t, gitleak.Config.Analytics, a.Analytics)
	assert.Equal(t, gitleak.Config.Target, a.Target)
}

func TestDrop_StageMismatchLeavesGraphUntouched(t *testing.T) {
	g, eng, a, b := setup(t)
	_, err := eng.Assign(b.ID, snyk)
	require.NoError(t, err)
	before := g.Snapshot()

	// Palette tool on the wrong node.
	require.NoError(t, eng.StartFromPalette(gitleak))
	_, err = eng.Drop(b.ID, dragdrop.EffectCopy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dragdrop.ErrStageMismatch))
	var mismatch *dragdrop.StageMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, flow.StageSCA, mismatch.NodeStage)
	assert.Equal(t, dragdrop.Idle, eng.State())

	// Node icon moved onto an incompatible node: neither side changes.
	require.NoError(t, eng.StartFromNode(b.ID))
	_, err = eng.Drop(a.ID, dragdrop.EffectMove)
	require.ErrorIs(t, err, dragdrop.ErrStageMismatch)

	if diff := cmp.Diff(before, g.Snapshot()); diff != "" {
		t.Errorf("graph changed after rejected drops (-before +after):\n%s", diff)
	}
}

func TestDrop_Idempotent(t *testing.T) {
	g, eng, a, _ := setup(t)

	_, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)
	first := g.Snapshot()

	res, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)
	assert.True(t, res.Unchanged)

	if diff := cmp.Diff(first, g.Snapshot()); diff != "" {
		t.Errorf("second drop changed state (-first +second):\n%s", diff)
	}
}

func TestDrop_NodeToNodeMoveClearsSource(t *testing.T) {
	g, eng, a, _ := setup(t)
	c := g.AddNode(flow.Template{Stage: flow.StageSecretScanning})
	_, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)

	require.NoError(t, eng.StartFromNode(a.ID))
	res, err := eng.Drop(c.ID, dragdrop.EffectMove)
	require.NoError(t, err)

	assert.Equal(t, a.ID, res.ClearedID)
	assert.False(t, a.HasImage)
	assert.Empty(t, a.AssignedTool)
	assert.True(t, c.HasImage)
	assert.Equal(t, gitleak.Name, c.AssignedTool)
	assert.Equal(t, gitleak.Config.Target, c.Target)
}

func TestDrop_NodeToNodeCopyKeepsSource(t *testing.T) {
	g, eng, a, _ := setup(t)
	c := g.AddNode(flow.Template{Stage: flow.StageSecretScanning})
	_, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)

	require.NoError(t, eng.StartFromNode(a.ID))
	res, err := eng.Drop(c.ID, dragdrop.EffectCopy)
	require.NoError(t, err)

	assert.Empty(t, res.ClearedID)
	assert.True(t, a.HasImage)
	assert.True(t, c.HasImage)
}

func TestDrop_MoveOntoSelfKeepsAssignment(t *testing.T) {
	_, eng, a, _ := setup(t)
	_, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)

	require.NoError(t, eng.StartFromNode(a.ID))
	res, err := eng.Drop(a.ID, dragdrop.EffectMove)
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.True(t, a.HasImage)
}

func TestPaletteDragMoveNeverClears(t *testing.T) {
	_, eng, a, _ := setup(t)
	_, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)

	require.NoError(t, eng.StartFromPalette(gitleak))
	res, err := eng.DropOnPalette(dragdrop.EffectMove)
	require.NoError(t, err)
	assert.Empty(t, res.ClearedID)
	assert.True(t, a.HasImage)
}

func TestDropOnPalette_RemovesNodeIcon(t *testing.T) {
	_, eng, a, _ := setup(t)
	_, err := eng.Assign(a.ID, gitleak)
	require.NoError(t, err)

	require.NoError(t, eng.StartFromNode(a.ID))
	res, err := eng.DropOnPalette(dragdrop.EffectMove)
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.ClearedID)
	assert.False(t, a.HasImage)
}

func TestGestureErrors(t *testing.T) {
	_, eng, a, b := setup(t)

	_, err := eng.Drop(a.ID, dragdrop.EffectCopy)
	assert.ErrorIs(t, err, dragdrop.ErrNotDragging)

	assert.ErrorIs(t, eng.StartFromNode(b.ID), dragdrop.ErrEmptySource)
	assert.ErrorIs(t, eng.StartFromNode("404"), dragdrop.ErrUnknownNode)

	require.NoError(t, eng.StartFromPalette(gitleak))
	assert.ErrorIs(t, eng.StartFromPalette(snyk), dragdrop.ErrGestureInProgress)

	_, err = eng.Drop("404", dragdrop.EffectCopy)
	assert.ErrorIs(t, err, dragdrop.ErrUnknownNode)
	assert.Equal(t, dragdrop.Idle, eng.State())

	require.NoError(t, eng.StartFromPalette(gitleak))
	eng.Cancel()
	assert.Equal(t, dragdrop.Idle, eng.State())
	assert.False(t, a.HasImage)

	bad := catalog.Tool{Name: "Fuzzy", Config: catalog.ToolConfig{Type: "Fuzzing"}}
	assert.ErrorIs(t, eng.StartFromPalette(bad), flow.ErrUnknownStage)
}

func TestPayloadSnapshotAtDragStart(t *testing.T) {
	_, eng, a, _ := setup(t)
	tool := gitleak

	require.NoError(t, eng.StartFromPalette(tool))
	tool.Name = "Renamed"
	tool.Config.Target = 99

	_, err := eng.Drop(a.ID, dragdrop.EffectCopy)
	require.NoError(t, err)
	assert.Equal(t, "GitLeak", a.AssignedTool)
	assert.Equal(t, 4.0, a.Target)
}

func TestEncodeDecode(t *testing.T) {
	n := &flow.Node{ID: "3", Stage: flow.StageSAST, AssignedTool: "Semgrep", CurrentImage: "/s.png", HasImage: true, Target: 1}
	data, err := dragdrop.Encode(dragdrop.NodePayload(n))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sourceNodeId":"3"`)

	p, err := dragdrop.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, dragdrop.KindNode, p.Kind)
	assert.Equal(t, "Semgrep", p.Tool)

	_, err = dragdrop.Decode([]byte(`{"type":"mystery"}`))
	assert.Error(t, err)
	_, err = dragdrop.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseEffect(t *testing.T) {
	e, err := dragdrop.ParseEffect("move")
	require.NoError(t, err)
	assert.Equal(t, dragdrop.EffectMove, e)
	_, err = dragdrop.ParseEffect("link")
	assert.Error(t, err)
}
