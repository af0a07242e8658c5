// Package generate wraps the text-generation service behind a single
// streaming call. The session treats generation as an external collaborator:
// a sequence of text fragments with arbitrary boundaries, terminated by a
// transport status. The call must be cancellable at any time via its context.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// Generator is the single blocking operation of a session. Stream delivers
// each received fragment to onFragment in arrival order and returns nil on a
// clean end of stream, the context error on cancellation, or the transport
// error otherwise.
type Generator interface {
	Stream(ctx context.Context, system, user string, onFragment func(fragment string)) error
}

// Options configures the OpenAI-compatible client.
type Options struct {
	APIKey          string
	BaseURL         string // empty means the default endpoint
	Model           string
	Temperature     float32
	MaxOutputTokens int
}

// OpenAI is a Generator over an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	opts   Options
}

// NewOpenAI builds the client. A custom BaseURL routes to any
// OpenAI-compatible service.
func NewOpenAI(opts Options) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), opts: opts}
}

// Stream opens a chat completion stream and forwards each content delta.
func (g *OpenAI) Stream(ctx context.Context, system, user string, onFragment func(string)) error {
	req := openai.ChatCompletionRequest{
		Model:       g.opts.Model,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxOutputTokens,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			onFragment(delta)
		}
	}
}
