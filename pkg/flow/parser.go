package flow

import (
	"fmt"
	"strconv"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// Assignment is a tool requested for a node by a graph file. It is applied
// through the drag/drop engine so that stage compatibility is still checked.
type Assignment struct {
	NodeID string
	Tool   string
}

// Document is a parsed graph file.
type Document struct {
	Name        string
	Graph       *Graph
	Assignments []Assignment
}

// ParseDOT parses a Graphviz DOT string into a Document. Recognised node
// attributes are stage (required), label, pos ("x,y") and tool.
//
//	digraph ci {
//	    secrets [stage=secret_scanning, tool=GitLeak, pos="40,80"]
//	    deps    [stage=sca]
//	    secrets -> deps
//	}
func ParseDOT(src string, opts ...Option) (*Document, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	g := New(opts...)
	doc := &Document{Name: collector.name, Graph: g}

	for _, id := range collector.order {
		attrs := collector.nodes[id]
		stage, err := ParseStage(attrs["stage"])
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		n := &Node{
			ID:    id,
			Stage: stage,
			Label: attrs["label"],
		}
		if n.Label == "" {
			n.Label = string(stage)
		}
		if raw, ok := attrs["pos"]; ok {
			pos, err := parsePos(raw)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", id, err)
			}
			n.Position = pos
		}
		g.insert(n)
		if tool := attrs["tool"]; tool != "" {
			doc.Assignments = append(doc.Assignments, Assignment{NodeID: id, Tool: tool})
		}
	}

	for _, e := range collector.edges {
		if _, ok := g.Connect(e.from, e.to); !ok {
			return nil, fmt.Errorf("edge %q -> %q references an unknown node", e.from, e.to)
		}
	}

	return doc, nil
}

func parsePos(raw string) (Position, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("pos %q: want \"x,y\"", raw)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Position{}, fmt.Errorf("pos %q: %w", raw, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Position{}, fmt.Errorf("pos %q: %w", raw, err)
	}
	return Position{X: x, Y: y}, nil
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
}

// dotCollector implements gographviz.Interface without attribute validation
// and remembers the order in which nodes first appear.
type dotCollector struct {
	name             string
	order            []string
	nodes            map[string]map[string]string
	edges            []rawEdge
	defaultNodeAttrs map[string]string
}

func newDOTCollector() *dotCollector {
	return &dotCollector{
		nodes:            make(map[string]map[string]string),
		defaultNodeAttrs: make(map[string]string),
	}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.order = append(c.order, id)
		c.nodes[id] = make(map[string]string, len(c.defaultNodeAttrs))
		for k, v := range c.defaultNodeAttrs {
			c.nodes[id][k] = v
		}
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	c.edges = append(c.edges, rawEdge{from: unquote(src), to: unquote(dst)})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, _, _ string) error { return nil }

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// unquote strips surrounding double-quotes from a DOT attribute value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
