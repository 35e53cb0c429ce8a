// Package dragdrop mediates drag gestures between the tool palette and graph
// nodes. Each gesture moves Idle -> Dragging -> Idle; a drop either applies
// the payload to a node in full or changes nothing.
package dragdrop

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

var (
	ErrStageMismatch     = errors.New("tool stage does not match node stage")
	ErrUnknownNode       = errors.New("unknown node")
	ErrEmptySource       = errors.New("node holds no tool")
	ErrNotDragging       = errors.New("no drag in progress")
	ErrGestureInProgress = errors.New("a drag is already in progress")
)

// StageMismatchError reports a rejected drop.
type StageMismatchError struct {
	Tool      string
	ToolStage flow.Stage
	NodeID    string
	NodeStage flow.Stage
}

func (e *StageMismatchError) Error() string {
	return fmt.Sprintf("cannot drop %s (%s) on node %s: node expects %s",
		e.Tool, e.ToolStage, e.NodeID, e.NodeStage)
}

func (e *StageMismatchError) Unwrap() error { return ErrStageMismatch }

// State is the gesture state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Result describes what a successful drop changed.
type Result struct {
	TargetID  string
	ClearedID string
	// Unchanged is set when the target already held exactly this assignment.
	Unchanged bool
}

// Engine owns the current gesture for one graph.
type Engine struct {
	graph    *flow.Graph
	log      *zap.Logger
	state    State
	transfer []byte
}

// New returns an idle engine over g.
func New(g *flow.Graph, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{graph: g, log: logger.Named("dragdrop")}
}

// State returns the current gesture state.
func (e *Engine) State() State { return e.state }

// StartFromPalette begins dragging a catalog tool.
func (e *Engine) StartFromPalette(t catalog.Tool) error {
	p, err := ToolPayload(t)
	if err != nil {
		return err
	}
	return e.start(p)
}

// StartFromNode begins dragging the icon held by nodeID.
func (e *Engine) StartFromNode(nodeID string) error {
	n := e.graph.Node(nodeID)
	if n == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	if !n.HasImage {
		return fmt.Errorf("node %s: %w", nodeID, ErrEmptySource)
	}
	return e.start(NodePayload(n))
}

// start snapshots p into the transfer channel. Later catalog reloads or node
// edits do not affect the in-flight payload.
func (e *Engine) start(p Payload) error {
	if e.state == Dragging {
		return ErrGestureInProgress
	}
	data, err := Encode(p)
	if err != nil {
		return err
	}
	e.transfer = data
	e.state = Dragging
	e.log.Debug("drag started", zap.String("kind", string(p.Kind)), zap.String("tool", p.Tool))
	return nil
}

// Cancel ends the gesture without touching the graph.
func (e *Engine) Cancel() {
	if e.state == Dragging {
		e.log.Debug("drag cancelled")
	}
	e.reset()
}

func (e *Engine) reset() {
	e.state = Idle
	e.transfer = nil
}

// Drop ends the gesture on targetID. The payload's stage must equal the
// node's stage; otherwise nothing changes and a *StageMismatchError is
// returned. A node-to-node drag with EffectMove clears the source node.
func (e *Engine) Drop(targetID string, effect Effect) (Result, error) {
	if e.state != Dragging {
		return Result{}, ErrNotDragging
	}
	defer e.reset()

	p, err := Decode(e.transfer)
	if err != nil {
		return Result{}, err
	}

	target := e.graph.Node(targetID)
	if target == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownNode, targetID)
	}
	if p.Stage != target.Stage {
		mismatch := &StageMismatchError{
			Tool:      p.Tool,
			ToolStage: p.Stage,
			NodeID:    target.ID,
			NodeStage: target.Stage,
		}
		e.log.Info("drop rejected", zap.Error(mismatch))
		return Result{}, mismatch
	}

	res := Result{
		TargetID: target.ID,
		Unchanged: target.HasImage &&
			target.AssignedTool == p.Tool &&
			target.CurrentImage == p.ImageSrc &&
			target.Analytics == p.Analytics &&
			target.Target == p.Target,
	}
	target.Assign(p.Tool, p.ImageSrc, p.Analytics, p.Target)

	if p.Kind == KindNode && effect == EffectMove && p.SourceNodeID != target.ID {
		if src := e.graph.Node(p.SourceNodeID); src != nil {
			src.ClearAssignment()
			res.ClearedID = src.ID
		}
	}

	e.log.Debug("drop applied",
		zap.String("node", target.ID), zap.String("tool", p.Tool), zap.String("cleared", res.ClearedID))
	return res, nil
}

// DropOnPalette ends the gesture over the palette. Dragging a node's icon
// back with EffectMove unassigns that node; palette drags change nothing.
func (e *Engine) DropOnPalette(effect Effect) (Result, error) {
	if e.state != Dragging {
		return Result{}, ErrNotDragging
	}
	defer e.reset()

	p, err := Decode(e.transfer)
	if err != nil {
		return Result{}, err
	}
	var res Result
	if p.Kind == KindNode && effect == EffectMove {
		if src := e.graph.Node(p.SourceNodeID); src != nil {
			src.ClearAssignment()
			res.ClearedID = src.ID
		}
	}
	return res, nil
}

// Assign performs a complete palette-to-node gesture.
func (e *Engine) Assign(nodeID string, t catalog.Tool) (Result, error) {
	if err := e.StartFromPalette(t); err != nil {
		return Result{}, err
	}
	return e.Drop(nodeID, EffectCopy)
}
