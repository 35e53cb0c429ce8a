// Package present renders an aggregation result as the two-tab results view
// and turns errors into user-facing banner lines.
package present

import (
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/dragdrop"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tab selects a pane of the results view.
type Tab int

const (
	NodesData Tab = iota
	CombinedYAML
)

func (t Tab) String() string {
	switch t {
	case NodesData:
		return "Nodes Data"
	case CombinedYAML:
		return "Combined YAML"
	}
	return fmt.Sprintf("Tab(%d)", int(t))
}

// ParseTab accepts "nodes" or "yaml".
func ParseTab(s string) (Tab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nodes", "nodes-data", "data":
		return NodesData, nil
	case "yaml", "combined", "combined-yaml":
		return CombinedYAML, nil
	}
	return 0, fmt.Errorf("unknown tab %q: use nodes or yaml", s)
}

// Clipboard receives copied text.
type Clipboard interface {
	WriteText(text string) error
}

// WriterClipboard copies into any writer, such as a file or stdout.
type WriterClipboard struct {
	W io.Writer
}

func (c WriterClipboard) WriteText(text string) error {
	if _, err := io.WriteString(c.W, text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}

// View is the results modal for one aggregation.
type View struct {
	result *compose.Result
}

// NewView wraps r.
func NewView(r *compose.Result) *View {
	return &View{result: r}
}

// Heading summarizes the run, naming any tool that produced nothing.
func (v *View) Heading() string {
	h := v.result.Summary()
	if len(v.result.Unresolved) > 0 {
		h += "; no pipeline for " + strings.Join(v.result.Unresolved, ", ")
	}
	return h
}

// Render returns the content of tab.
func (v *View) Render(tab Tab) (string, error) {
	switch tab {
	case NodesData:
		data, err := json.MarshalIndent(v.result.Nodes, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render nodes data: %w", err)
		}
		return string(data), nil
	case CombinedYAML:
		return v.result.Combined, nil
	}
	return "", fmt.Errorf("render: unknown tab %v", tab)
}

// Copy renders tab into cb.
func (v *View) Copy(tab Tab, cb Clipboard) error {
	text, err := v.Render(tab)
	if err != nil {
		return err
	}
	return cb.WriteText(text)
}

// Banner maps an editor error to the warning shown above the canvas. It
// returns "" for nil.
func Banner(err error) string {
	var mismatch *dragdrop.StageMismatchError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mismatch):
		return fmt.Sprintf("Warning: %s belongs to %s and cannot be placed on a %s node.",
			mismatch.Tool, mismatch.ToolStage, mismatch.NodeStage)
	case errors.Is(err, compose.ErrNoToolsAssigned):
		return "Warning: no tools assigned. Drag a tool onto a node first."
	case errors.Is(err, compose.ErrNoPipelinesFound):
		return "Warning: no pipelines found for the assigned tools."
	case errors.Is(err, catalog.ErrUnavailable):
		return "Error: could not load the tool catalog. Reload to try again."
	}
	return "Error: " + err.Error()
}
