// Package flow holds the editor's node/edge graph: pipeline stage nodes, the
// connections between them, and the tool assignment state of each node.
//
// A Graph has exactly one mutator at a time (the editing session); it is not
// safe for concurrent mutation. Readers that need a stable view take a
// Snapshot.
package flow

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"go.uber.org/zap"
)

const (
	canvasWidth  = 600
	canvasHeight = 400
)

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single pipeline stage on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Stage    Stage    `json:"stage"`
	Label    string   `json:"label"`
	Position Position `json:"position"`

	// Assignment state. Analytics and Target are copied from the tool's
	// config when it is dropped; they are not live references.
	AssignedTool string  `json:"assignedTool,omitempty"`
	CurrentImage string  `json:"currentImage,omitempty"`
	HasImage     bool    `json:"hasImage"`
	Analytics    float64 `json:"analytics"`
	Target       float64 `json:"target"`
}

// Assign records tool as the node's assignment.
func (n *Node) Assign(tool, image string, analytics, target float64) {
	n.AssignedTool = tool
	n.CurrentImage = image
	n.HasImage = true
	n.Analytics = analytics
	n.Target = target
}

// ClearAssignment resets the node to an unassigned stage.
func (n *Node) ClearAssignment() {
	n.AssignedTool = ""
	n.CurrentImage = ""
	n.HasImage = false
	n.Analytics = 0
	n.Target = 0
}

// Edge is a directed connection between two nodes. It declares ordering only.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Template describes a node to be created. A nil Position places the node
// at a random spot on the canvas.
type Template struct {
	Stage    Stage     `json:"stage"`
	Label    string    `json:"label"`
	Position *Position `json:"position,omitempty"`
}

// Selection names nodes and edges to remove together.
type Selection struct {
	NodeIDs []string
	EdgeIDs []string
}

// Snapshot is a detached copy of a graph, including its id counter.
type Snapshot struct {
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
	NextID int    `json:"nextId"`
}

// Graph is the authoritative node/edge set of an editing session.
type Graph struct {
	nodes  []*Node
	index  map[string]*Node
	edges  []*Edge
	nextID int
	rnd    *rand.Rand
	log    *zap.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithRand sets the source used for default node placement.
func WithRand(r *rand.Rand) Option {
	return func(g *Graph) { g.rnd = r }
}

// WithLogger attaches a logger for no-op diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) { g.log = l.Named("flow") }
}

// New returns an empty graph whose first node id is "1".
func New(opts ...Option) *Graph {
	g := &Graph{
		index:  make(map[string]*Node),
		nextID: 1,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// FromSnapshot rebuilds a graph. Edges whose endpoints are missing are dropped.
func FromSnapshot(s Snapshot, opts ...Option) *Graph {
	g := New(opts...)
	for i := range s.Nodes {
		n := s.Nodes[i]
		g.insert(&n)
	}
	for _, e := range s.Edges {
		if g.index[e.Source] == nil || g.index[e.Target] == nil {
			continue
		}
		edge := e
		g.edges = append(g.edges, &edge)
	}
	if s.NextID > g.nextID {
		g.nextID = s.NextID
	}
	return g
}

// AddNode creates a node from t and returns it. Ids come from a counter that
// is never rewound, so an id is not reused after its node is deleted.
func (g *Graph) AddNode(t Template) *Node {
	pos := Position{
		X: float64(g.rnd.IntN(canvasWidth)),
		Y: float64(g.rnd.IntN(canvasHeight)),
	}
	if t.Position != nil {
		pos = *t.Position
	}
	label := t.Label
	if label == "" {
		label = string(t.Stage)
	}
	n := &Node{
		ID:       strconv.Itoa(g.nextID),
		Stage:    t.Stage,
		Label:    label,
		Position: pos,
	}
	g.nextID++
	g.insert(n)
	return n
}

// insert appends n and bumps the counter past any numeric id it carries.
func (g *Graph) insert(n *Node) {
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = n
	if v, err := strconv.Atoi(n.ID); err == nil && v >= g.nextID {
		g.nextID = v + 1
	}
}

// Node returns the node with id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.index[id]
}

// Nodes returns the live nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the live edges in creation order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Connect adds an edge from source to target. Parallel edges between the
// same ordered pair are allowed; each gets its own id. Returns false without
// change if either endpoint is unknown.
func (g *Graph) Connect(source, target string) (*Edge, bool) {
	if g.index[source] == nil || g.index[target] == nil {
		g.log.Debug("connect ignored: unknown endpoint",
			zap.String("source", source), zap.String("target", target))
		return nil, false
	}
	base := fmt.Sprintf("e%s-%s", source, target)
	id := base
	for n := 2; g.hasEdge(id); n++ {
		id = fmt.Sprintf("%s#%d", base, n)
	}
	e := &Edge{ID: id, Source: source, Target: target}
	g.edges = append(g.edges, e)
	return e, true
}

func (g *Graph) hasEdge(id string) bool {
	for _, e := range g.edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

// RemoveElements deletes the selected nodes and edges. Every edge touching a
// removed node goes with it. Unknown ids are ignored.
func (g *Graph) RemoveElements(sel Selection) {
	dropNode := make(map[string]bool, len(sel.NodeIDs))
	for _, id := range sel.NodeIDs {
		dropNode[id] = true
	}
	dropEdge := make(map[string]bool, len(sel.EdgeIDs))
	for _, id := range sel.EdgeIDs {
		dropEdge[id] = true
	}

	edges := g.edges[:0]
	for _, e := range g.edges {
		if dropEdge[e.ID] || dropNode[e.Source] || dropNode[e.Target] {
			continue
		}
		edges = append(edges, e)
	}
	g.edges = edges

	nodes := g.nodes[:0]
	for _, n := range g.nodes {
		if dropNode[n.ID] {
			delete(g.index, n.ID)
			continue
		}
		nodes = append(nodes, n)
	}
	g.nodes = nodes
}

// UpdateNodePosition moves a node. Last write wins.
func (g *Graph) UpdateNodePosition(id string, pos Position) {
	n := g.index[id]
	if n == nil {
		g.log.Debug("position update ignored: unknown node", zap.String("node", id))
		return
	}
	n.Position = pos
}

// OutgoingEdges returns all edges leaving nodeID, in creation order.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns all edges arriving at nodeID.
func (g *Graph) IncomingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot copies the graph's current state.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes:  make([]Node, len(g.nodes)),
		Edges:  make([]Edge, len(g.edges)),
		NextID: g.nextID,
	}
	for i, n := range g.nodes {
		s.Nodes[i] = *n
	}
	for i, e := range g.edges {
		s.Edges[i] = *e
	}
	return s
}
