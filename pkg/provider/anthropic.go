package provider

import (
	"context"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

const anthropicMaxTokens = 4096

// Anthropic serves completions through the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey))}
}

// Complete implements Provider.
func (p *Anthropic) Complete(ctx context.Context, messages []chat.Message, opts Options, stream bool) iter.Seq2[Chunk, error] {
	params := anthropicParams(messages, opts)
	if !stream {
		return func(yield func(Chunk, error) bool) {
			msg, err := p.client.Messages.New(ctx, params)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			var b strings.Builder
			for _, block := range msg.Content {
				if block.Type == "text" {
					b.WriteString(block.Text)
				}
			}
			yield(Chunk{
				Text:  b.String(),
				Usage: &Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
			}, nil)
		}
	}

	return func(yield func(Chunk, error) bool) {
		streamResp := p.client.Messages.NewStreaming(ctx, params)
		defer streamResp.Close()

		message := anthropic.Message{}
		for streamResp.Next() {
			event := streamResp.Current()
			if err := message.Accumulate(event); err != nil {
				yield(Chunk{}, err)
				return
			}
			ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if !yield(Chunk{Text: delta.Text}, nil) {
					return
				}
			}
		}
		if err := streamResp.Err(); err != nil {
			yield(Chunk{}, err)
			return
		}
		yield(Chunk{Usage: &Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		}}, nil)
	}
}

func anthropicParams(messages []chat.Message, opts Options) anthropic.MessageNewParams {
	system, rest := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(opts.Model),
		MaxTokens:   anthropicMaxTokens,
		Messages:    toAnthropicMessages(rest),
		Temperature: anthropic.Float(opts.Temperature),
		TopP:        anthropic.Float(opts.TopP),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func toAnthropicMessages(messages []chat.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == chat.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
