package flow

import (
	"fmt"
	"strings"
)

// LintError describes a structural problem in a graph.
type LintError struct {
	NodeID  string
	Message string
}

func (e LintError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s", e.NodeID, e.Message)
	}
	return e.Message
}

// Validate checks a graph for structural correctness and returns every
// problem found, not just the first.
func Validate(g *Graph) []LintError {
	var errs []LintError

	seen := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		if seen[n.ID] {
			errs = append(errs, LintError{NodeID: n.ID, Message: "duplicate node id"})
		}
		seen[n.ID] = true

		if !n.Stage.Valid() {
			errs = append(errs, LintError{NodeID: n.ID, Message: fmt.Sprintf("unknown stage %q", n.Stage)})
		}
		if n.HasImage && n.AssignedTool == "" {
			errs = append(errs, LintError{NodeID: n.ID, Message: "marked as holding a tool but no tool is assigned"})
		}
	}

	for _, e := range g.edges {
		if !seen[e.Source] {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge %s references unknown source node %q", e.ID, e.Source)})
		}
		if !seen[e.Target] {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge %s references unknown target node %q", e.ID, e.Target)})
		}
		if e.Source == e.Target {
			errs = append(errs, LintError{NodeID: e.Source, Message: "edge connects node to itself"})
		}
	}

	return errs
}

// ValidateErr calls Validate and returns nil if there are no errors, or a
// combined error message listing all lint errors.
func ValidateErr(g *Graph) error {
	errs := Validate(g)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("graph validation failed:\n  %s", strings.Join(msgs, "\n  "))
}
