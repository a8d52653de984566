// Package anthropic provides a completion-capability Handle backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/capmesh/core"
)

// Options configures the Anthropic handle (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Handle wraps the Anthropic Messages API behind the core.Handle interface.
type Handle struct {
	client *anthropic.Client
	opts   Options
}

// NewHandle creates a new Anthropic handle using the official client. When
// Options.APIKey is empty the client reads ANTHROPIC_API_KEY from the
// environment.
func NewHandle(optFns ...func(o *Options)) *Handle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Handle{client: &client, opts: opts}
}

// NewHandleFromClient creates a new Anthropic handle from an existing client.
func NewHandleFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Handle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handle{client: client, opts: opts}
}

// Call performs a completion. Recognized params: "system" and "prompt"
// (strings), "max_tokens" (int) and "temperature" (float64) overriding the
// handle defaults.
func (h *Handle) Call(ctx context.Context, op core.Operation, params map[string]any) (any, error) {
	if op != core.OpComplete {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownOperation, op)
	}

	prompt, _ := params["prompt"].(string)
	req := anthropic.MessageNewParams{
		Model:       h.opts.Model,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens:   h.opts.MaxTokens,
		Temperature: anthropic.Float(h.opts.Temperature),
	}
	if system, _ := params["system"].(string); system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if v, ok := params["max_tokens"].(int); ok && v > 0 {
		req.MaxTokens = int64(v)
	}
	if v, ok := params["temperature"].(float64); ok {
		req.Temperature = anthropic.Float(v)
	}

	resp, err := h.client.Messages.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return core.CompletionResult{
		Text:       text.String(),
		Model:      string(resp.Model),
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

// Probe issues a minimal single-token completion and reports its latency.
func (h *Handle) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := h.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     h.opts.Model,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
		MaxTokens: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("anthropic probe failed: %w", err)
	}
	return time.Since(start), nil
}

var _ core.Handle = (*Handle)(nil)
