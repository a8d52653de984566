// Package openai provides a completion-capability Handle backed by the
// OpenAI Chat Completions API. It adapts the generic operation/params calling
// convention onto the SDK's message format and back.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/capmesh/core"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI handle. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Handle wraps the OpenAI Chat Completions API behind the core.Handle
// interface.
type Handle struct {
	client *openai.Client
	opts   Options
}

// NewHandle creates a new OpenAI handle using the official client. The
// client reads OPENAI_API_KEY from the environment.
func NewHandle(optFns ...func(o *Options)) *Handle {
	client := openai.NewClient()
	return NewHandleFromClient(&client, optFns...)
}

// NewHandleFromClient creates a new OpenAI handle from an existing client.
func NewHandleFromClient(client *openai.Client, optFns ...func(o *Options)) *Handle {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
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

	var messages []openai.ChatCompletionMessageParamUnion
	if system, _ := params["system"].(string); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	prompt, _ := params["prompt"].(string)
	messages = append(messages, openai.UserMessage(prompt))

	req := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               h.opts.Model,
		Temperature:         openai.Float(h.opts.Temperature),
		MaxCompletionTokens: openai.Int(h.opts.MaxCompletionTokens),
	}
	if v, ok := params["max_tokens"].(int); ok && v > 0 {
		req.MaxCompletionTokens = openai.Int(int64(v))
	}
	if v, ok := params["temperature"].(float64); ok {
		req.Temperature = openai.Float(v)
	}

	resp, err := h.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return core.CompletionResult{
		Text:       resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Probe issues a minimal single-token completion and reports its latency.
func (h *Handle) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := h.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		Model:               h.opts.Model,
		MaxCompletionTokens: openai.Int(1),
	})
	if err != nil {
		return 0, fmt.Errorf("openai probe failed: %w", err)
	}
	return time.Since(start), nil
}

var _ core.Handle = (*Handle)(nil)
