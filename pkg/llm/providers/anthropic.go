// Package providers registers LLM provider adapters.
// Import this package with a blank identifier to activate them:
//
//	import _ "github.com/ravi-parthasarathy/pipegen/pkg/llm/providers"
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ravi-parthasarathy/pipegen/pkg/llm"
)

func init() {
	llm.RegisterProvider("anthropic", func(modelName string) (llm.Client, error) {
		return NewAnthropic(modelName), nil
	})
}

// Anthropic is an llm.Client backed by the Messages API.
type Anthropic struct {
	sdk       anthropicsdk.Client
	modelName string
	backoff   llm.Backoff
}

// NewAnthropic returns a client for modelName. Without options the SDK reads
// ANTHROPIC_API_KEY from the environment.
func NewAnthropic(modelName string, opts ...option.RequestOption) *Anthropic {
	return &Anthropic{
		sdk:       anthropicsdk.NewClient(opts...),
		modelName: modelName,
		backoff:   llm.DefaultBackoff,
	}
}

// Complete performs a blocking generation with retry on transient errors.
func (a *Anthropic) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	var resp llm.Response
	err := a.backoff.Retry(ctx, 4, func() error {
		var innerErr error
		resp, innerErr = a.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (a *Anthropic) doComplete(ctx context.Context, req llm.Request) (llm.Response, error) {
	msgs := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropicsdk.NewTextBlock(m.Text)
		switch m.Role {
		case llm.RoleUser:
			msgs = append(msgs, anthropicsdk.NewUserMessage(block))
		case llm.RoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(block))
		}
	}

	maxTokens := int64(1024)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.modelName),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.sdk.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, mapError(err)
	}
	return convertResponse(msg), nil
}

func convertResponse(msg *anthropicsdk.Message) llm.Response {
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	stop := llm.StopReasonEndTurn
	if msg.StopReason == anthropicsdk.StopReasonMaxTokens {
		stop = llm.StopReasonMaxTokens
	}
	return llm.Response{
		Text:       sb.String(),
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func mapError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		base := llm.LLMError{Code: apiErr.StatusCode, Message: apiErr.Error(), Cause: err}
		switch apiErr.StatusCode {
		case 429:
			return &llm.RateLimitError{LLMError: base}
		case 401, 403:
			return &llm.AuthError{LLMError: base}
		case 400, 404, 413:
			return &llm.InvalidRequestError{LLMError: base}
		case 500, 502, 503, 529:
			return &llm.ServerError{LLMError: base}
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}
