// Package store persists the tool catalog, platforms and pipeline fragments
// served by the REST service.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

var (
	// ErrInvalid marks a record that failed validation.
	ErrInvalid = errors.New("invalid record")
	// ErrConflict marks a duplicate unique key.
	ErrConflict = errors.New("record already exists")
)

// Platform is a CI/CD system fragments are written for.
type Platform struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Repository is the storage contract behind the REST service. Search results
// are ordered newest first (updated_at DESC, then id).
type Repository interface {
	ListTools(ctx context.Context) ([]catalog.Tool, error)
	CreateTool(ctx context.Context, t catalog.Tool) (catalog.Tool, error)
	ListPlatforms(ctx context.Context) ([]Platform, error)
	CreatePlatform(ctx context.Context, p Platform) (Platform, error)
	SearchPipelines(ctx context.Context, q compose.Query) ([]compose.Record, error)
	CreatePipeline(ctx context.Context, r compose.Record) (compose.Record, error)
}

var _ compose.Resolver = Repository(nil)

func validateTool(t catalog.Tool) (catalog.Tool, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return t, fmt.Errorf("%w: tool name is required", ErrInvalid)
	}
	stage, err := t.Stage()
	if err != nil {
		return t, fmt.Errorf("%w: tool %q: %w", ErrInvalid, t.Name, err)
	}
	t.Config.Type = string(stage)
	return t, nil
}

func validatePlatform(p Platform) (Platform, error) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		return p, fmt.Errorf("%w: platform name is required", ErrInvalid)
	}
	return p, nil
}

func validatePipeline(r compose.Record) (compose.Record, error) {
	r.Tool = strings.TrimSpace(r.Tool)
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	if r.Tool == "" || r.Platform == "" {
		return r, fmt.Errorf("%w: pipeline tool and platform are required", ErrInvalid)
	}
	stage, err := flow.ParseStage(r.Stage)
	if err != nil {
		return r, fmt.Errorf("%w: pipeline %s/%s: %w", ErrInvalid, r.Tool, r.Platform, err)
	}
	r.Stage = string(stage)
	if r.YAMLContent == nil || strings.TrimSpace(*r.YAMLContent) == "" {
		return r, fmt.Errorf("%w: pipeline %s/%s: yaml_content is required", ErrInvalid, r.Tool, r.Platform)
	}
	var doc any
	if err := yaml.Unmarshal([]byte(*r.YAMLContent), &doc); err != nil {
		return r, fmt.Errorf("%w: pipeline %s/%s: yaml_content: %w", ErrInvalid, r.Tool, r.Platform, err)
	}
	return r, nil
}

// matches applies the search filter. Empty query fields match anything.
func matches(r compose.Record, q compose.Query) bool {
	eq := func(want, got string) bool { return want == "" || strings.EqualFold(want, got) }
	return eq(q.Tool, r.Tool) &&
		eq(q.Platform, r.Platform) &&
		eq(string(q.Stage), r.Stage) &&
		eq(q.Language, r.Language)
}
