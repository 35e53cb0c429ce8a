package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
)

// DraftMarker heads every drafted fragment so it is never mistaken for a
// stored one.
const DraftMarker = "# drafted"

const draftSystem = `You write CI/CD pipeline fragments. Reply with a single YAML fragment and nothing else.
The fragment must run the named security tool for the named stage on the named platform.
Do not add prose. Do not wrap the YAML in code fences.`

// ErrEmptyDraft is returned when the model produced no usable YAML.
var ErrEmptyDraft = errors.New("model returned an empty draft")

// Drafter asks a model for a fragment when the store has none.
type Drafter struct {
	client    Client
	maxTokens int
	log       *zap.Logger
}

// NewDrafter wraps c. A nil logger discards output.
func NewDrafter(c Client, logger *zap.Logger) *Drafter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Drafter{client: c, maxTokens: 1024, log: logger.Named("drafter")}
}

// Draft returns a YAML fragment for q, headed by DraftMarker.
func (d *Drafter) Draft(ctx context.Context, q compose.Query) (string, error) {
	prompt := fmt.Sprintf("Tool: %s\nStage: %s\nPlatform: %s\nLanguage: %s",
		q.Tool, q.Stage, q.Platform, q.Language)
	resp, err := d.client.Complete(ctx, Request{
		System:    draftSystem,
		Messages:  []Message{{Role: RoleUser, Text: prompt}},
		MaxTokens: d.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("draft %s: %w", q.Tool, err)
	}

	body := StripFences(resp.Text)
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("draft %s: %w", q.Tool, ErrEmptyDraft)
	}
	var doc any
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return "", fmt.Errorf("draft %s: invalid yaml: %w", q.Tool, err)
	}
	d.log.Info("fragment drafted",
		zap.String("tool", q.Tool),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))
	return DraftMarker + "\n" + body, nil
}

// Resolver exposes the drafter as a compose.Resolver returning one record.
func (d *Drafter) Resolver() compose.Resolver {
	return draftResolver{d}
}

type draftResolver struct{ d *Drafter }

func (r draftResolver) SearchPipelines(ctx context.Context, q compose.Query) ([]compose.Record, error) {
	y, err := r.d.Draft(ctx, q)
	if err != nil {
		return nil, err
	}
	return []compose.Record{{
		Tool:        q.Tool,
		Platform:    q.Platform,
		Stage:       string(q.Stage),
		Language:    q.Language,
		YAMLContent: &y,
	}}, nil
}

// StripFences removes a surrounding ``` block, with or without a language
// tag, and guarantees a trailing newline.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		} else {
			rest = ""
		}
		rest = strings.TrimSuffix(strings.TrimRight(rest, " \n"), "```")
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return ""
	}
	return s + "\n"
}
