package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
)

// Memory is an in-process Repository for development and tests.
type Memory struct {
	mu        sync.RWMutex
	tools     []catalog.Tool
	platforms []Platform
	pipelines []compose.Record
	now       func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the timestamp source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) ListTools(_ context.Context) ([]catalog.Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]catalog.Tool(nil), m.tools...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateTool(_ context.Context, t catalog.Tool) (catalog.Tool, error) {
	t, err := validateTool(t)
	if err != nil {
		return t, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tools {
		if strings.EqualFold(existing.Name, t.Name) {
			return t, fmt.Errorf("%w: tool %q", ErrConflict, t.Name)
		}
	}
	t.ID = uuid.NewString()
	m.tools = append(m.tools, t)
	return t, nil
}

func (m *Memory) ListPlatforms(_ context.Context) ([]Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Platform(nil), m.platforms...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreatePlatform(_ context.Context, p Platform) (Platform, error) {
	p, err := validatePlatform(p)
	if err != nil {
		return p, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.platforms {
		if existing.Name == p.Name {
			return p, fmt.Errorf("%w: platform %q", ErrConflict, p.Name)
		}
	}
	p.ID = uuid.NewString()
	m.platforms = append(m.platforms, p)
	return p, nil
}

func (m *Memory) SearchPipelines(_ context.Context, q compose.Query) ([]compose.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []compose.Record
	for _, r := range m.pipelines {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CreatePipeline(_ context.Context, r compose.Record) (compose.Record, error) {
	r, err := validatePipeline(r)
	if err != nil {
		return r, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.NewString()
	r.UpdatedAt = m.now()
	content := *r.YAMLContent
	r.YAMLContent = &content
	m.pipelines = append(m.pipelines, r)
	return r, nil
}
