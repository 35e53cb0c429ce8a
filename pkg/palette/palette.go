// Package palette offers the fixed list of stage templates and turns a
// selected template into a new graph node.
package palette

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

// Template is one palette entry.
type Template struct {
	Stage flow.Stage `json:"stage"`
	Label string     `json:"label"`
	Image string     `json:"image"`
}

var templates = []Template{
	{Stage: flow.StageSecretScanning, Label: "Secret Scanning", Image: "/icons/secret-scanning.svg"},
	{Stage: flow.StageSCA, Label: "Software Composition Analysis", Image: "/icons/sca.svg"},
	{Stage: flow.StageSAST, Label: "Static Analysis", Image: "/icons/sast.svg"},
	{Stage: flow.StageDAST, Label: "Dynamic Analysis", Image: "/icons/dast.svg"},
	{Stage: flow.StageContainerSecurity, Label: "Container Security", Image: "/icons/container-security.svg"},
	{Stage: flow.StageIaCScan, Label: "IaC Scan", Image: "/icons/iac-scan.svg"},
	{Stage: flow.StageVulnerabilityManagement, Label: "Vulnerability Management", Image: "/icons/vuln-management.svg"},
}

// Templates returns a copy of the palette, one entry per stage.
func Templates() []Template {
	return append([]Template(nil), templates...)
}

// Lookup returns the template for stage.
func Lookup(stage flow.Stage) (Template, bool) {
	for _, t := range templates {
		if t.Stage == stage {
			return t, true
		}
	}
	return Template{}, false
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	switch level {
	case LevelError:
		n.Log.Error(message)
	case LevelWarning:
		n.Log.Warn(message)
	default:
		n.Log.Info(message, zap.String("level", string(level)))
	}
}

// Manager creates and removes nodes on behalf of the palette.
type Manager struct {
	graph  *flow.Graph
	notify Notifier
}

// NewManager returns a manager over g. A nil notifier discards messages.
func NewManager(g *flow.Graph, n Notifier) *Manager {
	if n == nil {
		n = NotifierFunc(func(Level, string) {})
	}
	return &Manager{graph: g, notify: n}
}

// Add creates a node from the stage's template.
func (m *Manager) Add(stage flow.Stage) (*flow.Node, error) {
	t, ok := Lookup(stage)
	if !ok {
		return nil, fmt.Errorf("%w: %q", flow.ErrUnknownStage, stage)
	}
	return m.AddTemplate(t, nil), nil
}

// AddTemplate creates a node by copying t. A nil pos lets the graph pick a
// random position.
func (m *Manager) AddTemplate(t Template, pos *flow.Position) *flow.Node {
	n := m.graph.AddNode(flow.Template{Stage: t.Stage, Label: t.Label, Position: pos})
	m.notify.Notify(LevelSuccess, fmt.Sprintf("%s node added", t.Label))
	return n
}

// Remove deletes the named nodes and every edge touching them. It returns
// how many nodes were actually removed.
func (m *Manager) Remove(ids ...string) int {
	removed := 0
	for _, id := range ids {
		if m.graph.Node(id) != nil {
			removed++
		}
	}
	m.graph.RemoveElements(flow.Selection{NodeIDs: ids})
	if removed > 0 {
		m.notify.Notify(LevelInfo, fmt.Sprintf("%d node(s) removed", removed))
	}
	return removed
}
