// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (streaming and non-streaming). It adapts the
// normalized Request/Response structures into the SDK's message format and back.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string // falls back to OPENAI_API_KEY when empty
	BaseURL             string
	RequestOptions      []option.RequestOption
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := append([]option.RequestOption{}, opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
}

// Generate calls Chat Completions, streaming deltas as partial responses
// when req.Stream is set. Sends stop once ctx is done.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		send := func(r model.Response) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- r:
				return nil
			}
		}
		params := m.buildParams(buildMessages(req))

		var err error
		if req.Stream {
			err = m.stream(ctx, params, send)
		} else {
			err = m.complete(ctx, params, send)
		}
		if err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

// buildMessages converts normalized contents into OpenAI chat messages,
// prepending the instructions as a system message.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, c := range req.Contents {
		text := c.Text()
		if text == "" {
			continue
		}
		switch c.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(text))
		case core.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(text))
		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}
	return messages
}

func (m *Model) buildParams(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
}

// stream forwards text deltas as partial responses followed by one
// aggregated final response.
func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, send func(model.Response) error) error {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	final := model.Response{FinishReason: "stop"}
	var text strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		final.ID = chunk.ID
		if u := usage(chunk.Usage); u != nil {
			final.Usage = u
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				final.FinishReason = choice.FinishReason
			}
			if choice.Delta.Content == "" {
				continue
			}
			text.WriteString(choice.Delta.Content)
			if err := send(model.Response{
				ID:      chunk.ID,
				Partial: true,
				Content: core.NewTextContent(core.RoleAssistant, choice.Delta.Content),
			}); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai streaming error: %w", err)
	}

	final.Content = core.NewTextContent(core.RoleAssistant, text.String())
	return send(final)
}

// complete issues one blocking completion and sends its first choice.
func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, send func(model.Response) error) error {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("openai api error: no choices returned")
	}
	choice := resp.Choices[0]
	return send(model.Response{
		ID:           resp.ID,
		Content:      core.NewTextContent(core.RoleAssistant, choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        usage(resp.Usage),
	})
}

func usage(u openai.CompletionUsage) *model.TokenUsage {
	if u.TotalTokens == 0 {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}
