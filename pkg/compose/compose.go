// Package compose resolves the tools assigned to a graph into stored pipeline
// fragments and joins them into one YAML document.
//
// Lookups run concurrently, one per assigned node, each under its own
// timeout. Results land in a slot indexed by node position so the combined
// document follows node order regardless of which lookup finishes first. A
// failed or timed-out lookup counts as "no match" and never aborts the rest.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

const (
	DefaultLookupTimeout = 5 * time.Second
	DocumentSeparator    = "\n---\n"
)

var (
	// ErrNoToolsAssigned is returned before any lookup is made.
	ErrNoToolsAssigned = errors.New("no tools assigned")
	// ErrNoPipelinesFound is returned after every lookup came back empty.
	ErrNoPipelinesFound = errors.New("no pipelines found")
)

// Query is one fragment lookup. Platform and Language come from the session.
type Query struct {
	Tool     string
	Platform string
	Stage    flow.Stage
	Language string
}

// Record is a stored pipeline fragment as returned by the search endpoint.
type Record struct {
	ID          string    `json:"_id,omitempty"`
	Tool        string    `json:"tool"`
	Platform    string    `json:"platform"`
	Stage       string    `json:"stage"`
	Language    string    `json:"language"`
	YAMLContent *string   `json:"yaml_content"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Resolver searches stored fragments. Records come back in the resolver's
// own order; the first one wins.
type Resolver interface {
	SearchPipelines(ctx context.Context, q Query) ([]Record, error)
}

// Params are the session-level lookup parameters.
type Params struct {
	Platform string
	Language string
}

// Fragment is the lookup outcome for one node. YAML is nil when nothing
// usable was found.
type Fragment struct {
	NodeID string
	Tool   string
	Stage  flow.Stage
	YAML   *string
}

// Header is the comment line that introduces a fragment in the combined document.
func (f Fragment) Header() string {
	return fmt.Sprintf("# %s - %s", f.Tool, f.Stage)
}

// NodeData is the per-node entry of the "Nodes Data" view.
type NodeData struct {
	Label     string     `json:"label"`
	Stage     flow.Stage `json:"stage"`
	Tool      string     `json:"tool"`
	Analytics float64    `json:"analytics"`
	Target    float64    `json:"target"`
	Resolved  bool       `json:"resolved"`
	YAML      *string    `json:"yaml"`
}

// Result is one aggregation run. It is never persisted.
type Result struct {
	RunID      string
	Combined   string
	Nodes      map[string]NodeData
	Fragments  []Fragment
	Resolved   int
	Total      int
	Unresolved []string
}

// Summary reports how many assigned tools produced a fragment.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d of %d tools resolved", r.Resolved, r.Total)
}

// Option configures a Composer.
type Option func(*Composer)

// WithLookupTimeout bounds every individual lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

// WithConcurrency caps in-flight lookups. Zero means one goroutine per node.
func WithConcurrency(n int) Option {
	return func(c *Composer) { c.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithFallback installs a second resolver consulted only for nodes the
// primary resolver left unresolved.
func WithFallback(r Resolver) Option {
	return func(c *Composer) { c.fallback = r }
}

// Composer runs aggregations against a Resolver.
type Composer struct {
	resolver      Resolver
	fallback      Resolver
	lookupTimeout time.Duration
	concurrency   int
	log           *zap.Logger
}

// New returns a Composer backed by r.
func New(r Resolver, opts ...Option) *Composer {
	c := &Composer{
		resolver:      r,
		lookupTimeout: DefaultLookupTimeout,
		log:           zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("compose")
	return c
}

// Assigned returns the nodes that hold a tool, in iteration order.
func Assigned(nodes []flow.Node) []flow.Node {
	var out []flow.Node
	for _, n := range nodes {
		if n.HasImage && n.AssignedTool != "" {
			out = append(out, n)
		}
	}
	return out
}

// Compose resolves every assigned node and joins the fragments in node order.
// With no assigned nodes it returns ErrNoToolsAssigned without calling the
// resolver. When no fragment survives it returns the partial Result together
// with ErrNoPipelinesFound.
func (c *Composer) Compose(ctx context.Context, nodes []flow.Node, p Params) (*Result, error) {
	assigned := Assigned(nodes)
	if len(assigned) == 0 {
		return nil, ErrNoToolsAssigned
	}

	res := &Result{
		RunID: uuid.NewString(),
		Nodes: make(map[string]NodeData, len(assigned)),
		Total: len(assigned),
	}
	log := c.log.With(zap.String("run_id", res.RunID))
	log.Info("compose started",
		zap.Int("nodes", len(assigned)),
		zap.String("platform", p.Platform),
		zap.String("language", p.Language))

	slots := make([]*string, len(assigned))
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, n := range assigned {
		g.Go(func() error {
			slots[i] = c.resolve(ctx, log, n, p)
			return nil
		})
	}
	_ = g.Wait()

	var parts []string
	for i, n := range assigned {
		frag := Fragment{NodeID: n.ID, Tool: n.AssignedTool, Stage: n.Stage, YAML: slots[i]}
		res.Fragments = append(res.Fragments, frag)
		res.Nodes[n.ID] = NodeData{
			Label:     n.Label,
			Stage:     n.Stage,
			Tool:      n.AssignedTool,
			Analytics: n.Analytics,
			Target:    n.Target,
			Resolved:  frag.YAML != nil,
			YAML:      frag.YAML,
		}
		if frag.YAML == nil {
			res.Unresolved = append(res.Unresolved, n.AssignedTool)
			continue
		}
		res.Resolved++
		parts = append(parts, frag.Header()+"\n"+*frag.YAML)
	}

	log.Info("compose finished", zap.String("summary", res.Summary()))
	if res.Resolved == 0 {
		return res, ErrNoPipelinesFound
	}
	res.Combined = strings.Join(parts, DocumentSeparator)
	return res, nil
}

func (c *Composer) resolve(ctx context.Context, log *zap.Logger, n flow.Node, p Params) *string {
	q := Query{Tool: n.AssignedTool, Platform: p.Platform, Stage: n.Stage, Language: p.Language}
	if y := c.lookup(ctx, log, c.resolver, n.ID, q); y != nil {
		return y
	}
	if c.fallback != nil {
		return c.lookup(ctx, log, c.fallback, n.ID, q)
	}
	return nil
}

// lookup runs one search under the per-lookup timeout and returns the first
// record's YAML if it is present and parses.
func (c *Composer) lookup(ctx context.Context, log *zap.Logger, r Resolver, nodeID string, q Query) *string {
	lctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	fields := []zap.Field{zap.String("node", nodeID), zap.String("tool", q.Tool), zap.String("stage", string(q.Stage))}
	records, err := r.SearchPipelines(lctx, q)
	if err != nil {
		log.Warn("lookup failed", append(fields, zap.Error(err))...)
		return nil
	}
	if len(records) == 0 || records[0].YAMLContent == nil {
		log.Debug("no match", fields...)
		return nil
	}
	content := *records[0].YAMLContent
	if err := checkFragment(content); err != nil {
		log.Warn("discarding fragment", append(fields, zap.Error(err))...)
		return nil
	}
	return &content
}

// checkFragment rejects blank or unparseable YAML.
func checkFragment(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("empty fragment")
	}
	var doc any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	return nil
}
