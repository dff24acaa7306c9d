// Package anthropic provides a model wrapper for the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model          anthropic.Model
	Temperature    float64
	MaxTokens      int64
	APIKey         string
	BaseURL        string
	RequestOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
// Requests are always answered with a single final response; the Stream flag
// of model.Request is not used.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
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

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Contents),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if system := systemBlocks(req); len(system) > 0 {
			params.System = system
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part
		for _, block := range resp.Content {
			if block.Type == "text" {
				if text := block.AsText().Text; text != "" {
					parts = append(parts, core.TextPart{Text: text})
				}
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// buildMessages converts contents to Anthropic message format. System
// contents are hoisted into the system prompt; unknown roles are sent as user.
func buildMessages(contents []core.Content) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(contents))
	for _, c := range contents {
		if c.Role == core.RoleSystem {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		for _, s := range c.TextSegments() {
			if s != "" {
				blocks = append(blocks, anthropic.NewTextBlock(s))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if c.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(blocks...))
	}
	return messages
}

// systemBlocks merges the request instructions with any system contents.
func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var texts []string
	if s := strings.TrimSpace(req.Instructions); s != "" {
		texts = append(texts, s)
	}
	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			if s := strings.TrimSpace(c.Text()); s != "" {
				texts = append(texts, s)
			}
		}
	}
	blocks := make([]anthropic.TextBlockParam, 0, len(texts))
	for _, t := range texts {
		blocks = append(blocks, anthropic.TextBlockParam{Text: t})
	}
	return blocks
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}
