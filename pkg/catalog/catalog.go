// Package catalog caches the backend's tool list for the palette and the
// search box. The cache is replaced wholesale on every load; slices handed
// to callers are never mutated afterwards.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

// ToolConfig is the stage metadata stored with a tool.
type ToolConfig struct {
	Type      string  `json:"type"`
	Target    float64 `json:"target"`
	Analytics float64 `json:"analytics"`
}

// Tool is a catalog entry owned by the backend.
type Tool struct {
	ID        string     `json:"_id,omitempty"`
	Name      string     `json:"name"`
	Version   string     `json:"version,omitempty"`
	ImagePath string     `json:"imagePath"`
	Config    ToolConfig `json:"config"`
}

// Stage parses the tool's declared stage.
func (t Tool) Stage() (flow.Stage, error) {
	return flow.ParseStage(t.Config.Type)
}

// ErrUnavailable marks a failed catalog load.
var ErrUnavailable = errors.New("tool catalog unavailable")

// Source fetches the full tool list.
type Source interface {
	ListTools(ctx context.Context) ([]Tool, error)
}

type filterKey struct {
	generation uint64
	term       string
}

// Cache holds the most recent successful catalog load.
type Cache struct {
	src Source
	log *zap.Logger

	mu         sync.RWMutex
	tools      []Tool
	generation uint64
	memo       map[filterKey][]Tool
}

// New returns an empty cache backed by src.
func New(src Source, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		src:  src,
		log:  logger.Named("catalog"),
		memo: make(map[filterKey][]Tool),
	}
}

// Load fetches the catalog once. On failure the cache is emptied and the
// error returned; there is no retry.
func (c *Cache) Load(ctx context.Context) error {
	tools, err := c.src.ListTools(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.memo = make(map[filterKey][]Tool)
	if err != nil {
		c.tools = nil
		c.log.Warn("catalog load failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.tools = append([]Tool(nil), tools...)
	c.log.Info("catalog loaded", zap.Int("tools", len(c.tools)))
	return nil
}

// All returns the cached tools.
func (c *Cache) All() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// Filter returns tools whose name or stage contains term, case-insensitively.
// An empty or blank term returns the whole catalog. Results are memoized per
// catalog generation and term.
func (c *Cache) Filter(term string) []Tool {
	term = strings.ToLower(strings.TrimSpace(term))

	c.mu.RLock()
	tools, gen := c.tools, c.generation
	if term == "" {
		c.mu.RUnlock()
		return tools
	}
	key := filterKey{generation: gen, term: term}
	if hit, ok := c.memo[key]; ok {
		c.mu.RUnlock()
		return hit
	}
	c.mu.RUnlock()

	var out []Tool
	for _, t := range tools {
		if strings.Contains(strings.ToLower(t.Name), term) ||
			strings.Contains(strings.ToLower(t.Config.Type), term) {
			out = append(out, t)
		}
	}

	c.mu.Lock()
	if c.generation == gen {
		c.memo[key] = out
	}
	c.mu.Unlock()
	return out
}

// Lookup finds a tool by name, case-insensitively.
func (c *Cache) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tools {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Tool{}, false
}
