package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

func strPtr(s string) *string { return &s }

// steppingClock returns a clock that advances one minute per call.
func steppingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

// -- Tools and platforms --

func TestMemory_Tools(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.CreateTool(ctx, catalog.Tool{Name: " Snyk ", Config: catalog.ToolConfig{Type: "sca"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Snyk", created.Name)
	assert.Equal(t, "SCA", created.Config.Type, "stage is normalized")

	_, err = m.CreateTool(ctx, catalog.Tool{Name: "GitLeak", Config: catalog.ToolConfig{Type: "Secret Scanning"}})
	require.NoError(t, err)

	_, err = m.CreateTool(ctx, catalog.Tool{Name: "snyk", Config: catalog.ToolConfig{Type: "SCA"}})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.CreateTool(ctx, catalog.Tool{Name: "Fuzz", Config: catalog.ToolConfig{Type: "Fuzzing"}})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = m.CreateTool(ctx, catalog.Tool{Config: catalog.ToolConfig{Type: "SCA"}})
	assert.ErrorIs(t, err, ErrInvalid)

	tools, err := m.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "GitLeak", tools[0].Name)
}

func TestMemory_Platforms(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p, err := m.CreatePlatform(ctx, Platform{Name: "GitHub"})
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name)

	_, err = m.CreatePlatform(ctx, Platform{Name: "github"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.CreatePlatform(ctx, Platform{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	ps, err := m.ListPlatforms(ctx)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

// -- Pipelines --

func TestMemory_SearchOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetClock(steppingClock())

	for _, y := range []string{"v: 1\n", "v: 2\n", "v: 3\n"} {
		_, err := m.CreatePipeline(ctx, compose.Record{
			Tool: "GitLeak", Platform: "github", Stage: "secret_scanning", Language: "python", YAMLContent: strPtr(y),
		})
		require.NoError(t, err)
	}
	_, err := m.CreatePipeline(ctx, compose.Record{
		Tool: "GitLeak", Platform: "gitlab", Stage: "Secret Scanning", YAMLContent: strPtr("other: true\n"),
	})
	require.NoError(t, err)

	recs, err := m.SearchPipelines(ctx, compose.Query{
		Tool: "gitleak", Platform: "GitHub", Stage: flow.StageSecretScanning, Language: "python",
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "v: 3\n", *recs[0].YAMLContent)
	assert.Equal(t, "v: 1\n", *recs[2].YAMLContent)
	assert.True(t, recs[0].UpdatedAt.After(recs[1].UpdatedAt))

	all, err := m.SearchPipelines(ctx, compose.Query{Tool: "GitLeak"})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := m.SearchPipelines(ctx, compose.Query{Tool: "Snyk"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_CreatePipelineValidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	tests := []struct {
		name string
		rec  compose.Record
	}{
		{"missing tool", compose.Record{Platform: "github", Stage: "SCA", YAMLContent: strPtr("a: 1")}},
		{"bad stage", compose.Record{Tool: "x", Platform: "github", Stage: "Fuzz", YAMLContent: strPtr("a: 1")}},
		{"nil yaml", compose.Record{Tool: "x", Platform: "github", Stage: "SCA"}},
		{"blank yaml", compose.Record{Tool: "x", Platform: "github", Stage: "SCA", YAMLContent: strPtr("  ")}},
		{"broken yaml", compose.Record{Tool: "x", Platform: "github", Stage: "SCA", YAMLContent: strPtr("a: [1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreatePipeline(ctx, tt.rec)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestMemory_StoredContentIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	content := "a: 1\n"
	_, err := m.CreatePipeline(ctx, compose.Record{Tool: "x", Platform: "github", Stage: "SCA", YAMLContent: &content})
	require.NoError(t, err)

	content = "mutated"
	recs, err := m.SearchPipelines(ctx, compose.Query{Tool: "x"})
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", *recs[0].YAMLContent)
}

// -- Seed --

const seedYAML = `
platforms: [github, gitlab]
tools:
  - name: GitLeak
    version: "8.18"
    image_path: /icons/gitleak.svg
    stage: Secret Scanning
    target: 4
    analytics: 7
  - name: Snyk
    stage: SCA
pipelines:
  - tool: GitLeak
    platform: github
    stage: Secret Scanning
    language: python
    yaml: |
      gitleaks:
        runs-on: ubuntu-latest
`

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	m := NewMemory()

	n, err := LoadSeed(ctx, m, path)
	require.NoError(t, err)
	assert.Equal(t, SeedCounts{Platforms: 2, Tools: 2, Pipelines: 1}, n)

	tools, _ := m.ListTools(ctx)
	assert.Equal(t, "/icons/gitleak.svg", tools[0].ImagePath)
	assert.Equal(t, 4.0, tools[0].Config.Target)

	recs, _ := m.SearchPipelines(ctx, compose.Query{Tool: "GitLeak", Platform: "github"})
	require.Len(t, recs, 1)
	assert.Contains(t, *recs[0].YAMLContent, "runs-on: ubuntu-latest")

	again, err := LoadSeed(ctx, m, path)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Tools, "existing tools are skipped")
	assert.Equal(t, 0, again.Platforms)
}

func TestParseSeed_Invalid(t *testing.T) {
	_, err := ParseSeed([]byte("tools: [unterminated"))
	assert.Error(t, err)
}
