package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/pipegen/internal/config"
	"github.com/ravi-parthasarathy/pipegen/internal/server"
	"github.com/ravi-parthasarathy/pipegen/internal/store"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

const seedDoc = `
platforms: [github]
tools:
  - name: GitLeak
    image_path: /icons/gitleak.svg
    stage: Secret Scanning
  - name: Snyk
    image_path: /icons/snyk.svg
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

const graphDoc = `digraph ci {
    secrets [stage=secret_scanning, pos="40,80"]
    deps    [stage=sca, pos="240,80"]
    secrets -> deps
}
`

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// startBackend serves a seeded in-memory store and points the CLI at it.
func startBackend(t *testing.T) {
	t.Helper()
	repo := store.NewMemory()
	s, err := store.ParseSeed([]byte(seedDoc))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	if _, err := store.Apply(context.Background(), repo, s); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	ts := httptest.NewServer(server.New(repo, config.ServerConfig{}, nil))
	t.Cleanup(ts.Close)
	t.Setenv("PIPEGEN_BACKEND_URL", ts.URL)
}

// ─── templates ────────────────────────────────────────────────────────────────

func TestTemplates_ListsEveryStage(t *testing.T) {
	out, _, err := run(t, "templates")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	for _, st := range flow.Stages() {
		if !strings.Contains(out, st.Slug()) {
			t.Errorf("output missing stage %q:\n%s", st, out)
		}
	}
}

// ─── graph / lint ─────────────────────────────────────────────────────────────

func TestGraph_Text(t *testing.T) {
	path := writeFile(t, "ci.dot", graphDoc)
	out, _, err := run(t, "graph", path)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if !strings.Contains(out, "Graph: ci  (2 nodes, 1 edges)") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestGraph_DOTRoundTrip(t *testing.T) {
	path := writeFile(t, "ci.dot", graphDoc)
	out, _, err := run(t, "graph", "--format", "dot", path)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	doc, err := flow.ParseDOT(out)
	if err != nil {
		t.Fatalf("re-parse rendered DOT: %v\n%s", err, out)
	}
	if doc.Graph.Len() != 2 || len(doc.Graph.Edges()) != 1 {
		t.Errorf("round trip lost elements: %d nodes, %d edges", doc.Graph.Len(), len(doc.Graph.Edges()))
	}
}

func TestGraph_UnknownFormat(t *testing.T) {
	path := writeFile(t, "ci.dot", graphDoc)
	if _, _, err := run(t, "graph", "--format", "svg", path); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLint(t *testing.T) {
	ok := writeFile(t, "ok.dot", graphDoc)
	out, _, err := run(t, "lint", ok)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if !strings.HasPrefix(out, "OK:") {
		t.Errorf("lint output = %q", out)
	}

	bad := writeFile(t, "bad.dot", "digraph x { a [stage=sast]\n a -> a }")
	if _, _, err := run(t, "lint", bad); err == nil {
		t.Fatal("expected lint error for self-loop")
	}
}

// ─── tools ────────────────────────────────────────────────────────────────────

func TestTools_Search(t *testing.T) {
	startBackend(t)
	out, _, err := run(t, "tools", "secret")
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if !strings.Contains(out, "GitLeak") || strings.Contains(out, "Snyk") {
		t.Errorf("filter result wrong:\n%s", out)
	}
}

func TestTools_BackendDown(t *testing.T) {
	t.Setenv("PIPEGEN_BACKEND_URL", "http://127.0.0.1:1")
	_, stderr, err := run(t, "tools")
	if err == nil {
		t.Fatal("expected error when backend is unreachable")
	}
	if !strings.Contains(stderr, "could not load the tool catalog") {
		t.Errorf("stderr = %q", stderr)
	}
}

// ─── compose ──────────────────────────────────────────────────────────────────

func TestCompose_YAML(t *testing.T) {
	startBackend(t)
	path := writeFile(t, "ci.dot", graphDoc)

	out, stderr, err := run(t, "compose", path,
		"--platform", "github", "--language", "python",
		"--assign", "secrets=GitLeak", "--assign", "deps=Snyk")
	if err != nil {
		t.Fatalf("compose: %v\n%s", err, stderr)
	}
	if !strings.HasPrefix(out, "# GitLeak - Secret Scanning\ngitleaks:") {
		t.Errorf("combined yaml:\n%s", out)
	}
	if !strings.Contains(stderr, "1 of 2 tools resolved") {
		t.Errorf("heading missing from stderr: %q", stderr)
	}
}

func TestCompose_StageMismatchIsSkipped(t *testing.T) {
	startBackend(t)
	path := writeFile(t, "ci.dot", graphDoc)

	_, stderr, err := run(t, "compose", path, "--platform", "github", "--assign", "deps=GitLeak")
	if err == nil {
		t.Fatal("expected no-tools error after the only drop was rejected")
	}
	if !strings.Contains(stderr, "GitLeak belongs to Secret Scanning") {
		t.Errorf("mismatch banner missing: %q", stderr)
	}
	if !strings.Contains(stderr, "no tools assigned") {
		t.Errorf("no-tools banner missing: %q", stderr)
	}
}

func TestCompose_SaveAndReload(t *testing.T) {
	startBackend(t)
	dir := t.TempDir()
	dot := writeFile(t, "ci.dot", graphDoc)
	sess := filepath.Join(dir, "session.json")
	outFile := filepath.Join(dir, "nodes.json")

	if _, stderr, err := run(t, "compose", dot, "--platform", "github", "--language", "python",
		"--assign", "secrets=GitLeak", "--save", sess); err != nil {
		t.Fatalf("first compose: %v\n%s", err, stderr)
	}

	if _, stderr, err := run(t, "compose", sess, "--tab", "nodes", "--out", outFile); err != nil {
		t.Fatalf("compose from session: %v\n%s", err, stderr)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `"tool": "GitLeak"`) {
		t.Errorf("nodes data:\n%s", data)
	}
}

func TestCompose_ServerSide(t *testing.T) {
	startBackend(t)
	path := writeFile(t, "ci.dot", graphDoc)

	out, _, err := run(t, "compose", path, "--server-side",
		"--platform", "github", "--language", "python", "--assign", "secrets=GitLeak")
	if err != nil {
		t.Fatalf("compose --server-side: %v", err)
	}
	if !strings.Contains(out, "gitleaks:") {
		t.Errorf("server-side yaml:\n%s", out)
	}
}

func TestCompose_RequiresPlatform(t *testing.T) {
	path := writeFile(t, "ci.dot", graphDoc)
	if _, _, err := run(t, "compose", path); err == nil {
		t.Fatal("expected error without --platform")
	}
}

func TestCompose_BadAssignFlag(t *testing.T) {
	path := writeFile(t, "ci.dot", graphDoc)
	if _, _, err := run(t, "compose", path, "--platform", "github", "--assign", "secrets"); err == nil {
		t.Fatal("expected error for malformed --assign")
	}
}
