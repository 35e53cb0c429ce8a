package providers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ravi-parthasarathy/pipegen/pkg/llm"
	"github.com/ravi-parthasarathy/pipegen/pkg/llm/providers"
)

func newTestAnthropic(t *testing.T, h http.HandlerFunc) *providers.Anthropic {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return providers.NewAnthropic("claude-test",
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
}

func TestAnthropic_Complete(t *testing.T) {
	var gotBody string
	c := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "scan: gitleak"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`)
	})

	resp, err := c.Complete(context.Background(), llm.Request{
		System:   "be brief",
		Messages: []llm.Message{{Role: llm.RoleUser, Text: "Tool: GitLeak"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "scan: gitleak" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if !strings.Contains(gotBody, `"model":"claude-test"`) || !strings.Contains(gotBody, "Tool: GitLeak") {
		t.Errorf("request body = %s", gotBody)
	}
}

func TestAnthropic_AuthErrorNotRetried(t *testing.T) {
	calls := 0
	c := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := c.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Text: "hi"}}})
	var auth *llm.AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRegistered(t *testing.T) {
	c, err := llm.NewClient("anthropic:claude-test")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := c.(*providers.Anthropic); !ok {
		t.Errorf("client type = %T", c)
	}
}
