package dragdrop

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind tags where a drag started.
type Kind string

const (
	// KindTool is a drag from a palette entry.
	KindTool Kind = "tool"
	// KindNode is a drag of an icon already held by a node.
	KindNode Kind = "node"
)

// Effect is the drop effect the gesture reported.
type Effect string

const (
	EffectCopy Effect = "copy"
	EffectMove Effect = "move"
)

// ParseEffect accepts "copy" or "move".
func ParseEffect(s string) (Effect, error) {
	switch Effect(s) {
	case EffectCopy, EffectMove:
		return Effect(s), nil
	}
	return "", fmt.Errorf("unknown drop effect %q: use copy or move", s)
}

// Payload is what travels through the transfer channel during a drag.
type Payload struct {
	Kind         Kind       `json:"type"`
	Tool         string     `json:"tool"`
	Stage        flow.Stage `json:"stage"`
	ImageSrc     string     `json:"imageSrc"`
	Analytics    float64    `json:"analytics"`
	Target       float64    `json:"target"`
	SourceNodeID string     `json:"sourceNodeId,omitempty"`
}

// ToolPayload builds a palette payload from a catalog entry.
func ToolPayload(t catalog.Tool) (Payload, error) {
	stage, err := t.Stage()
	if err != nil {
		return Payload{}, fmt.Errorf("tool %q: %w", t.Name, err)
	}
	return Payload{
		Kind:      KindTool,
		Tool:      t.Name,
		Stage:     stage,
		ImageSrc:  t.ImagePath,
		Analytics: t.Config.Analytics,
		Target:    t.Config.Target,
	}, nil
}

// NodePayload builds a payload from the icon a node currently holds.
func NodePayload(n *flow.Node) Payload {
	return Payload{
		Kind:         KindNode,
		Tool:         n.AssignedTool,
		Stage:        n.Stage,
		ImageSrc:     n.CurrentImage,
		Analytics:    n.Analytics,
		Target:       n.Target,
		SourceNodeID: n.ID,
	}
}

// Encode serializes a payload for the transfer channel.
func Encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode drag payload: %w", err)
	}
	return data, nil
}

// Decode reads a payload from the transfer channel.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode drag payload: %w", err)
	}
	switch p.Kind {
	case KindTool, KindNode:
	default:
		return Payload{}, fmt.Errorf("decode drag payload: unknown kind %q", p.Kind)
	}
	return p, nil
}
