package provider

import (
	"context"
	"errors"
	"iter"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI serves chat completions through the OpenAI API or any endpoint that
// speaks the same protocol.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI provider. An empty baseURL uses the SDK default.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

// Complete implements Provider.
func (p *OpenAI) Complete(ctx context.Context, messages []chat.Message, opts Options, stream bool) iter.Seq2[Chunk, error] {
	params := openAIParams(messages, opts)
	if !stream {
		return func(yield func(Chunk, error) bool) {
			completion, err := p.client.Chat.Completions.New(ctx, params)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if len(completion.Choices) == 0 {
				yield(Chunk{}, errors.New("empty completion choices"))
				return
			}
			yield(Chunk{
				Text:  completion.Choices[0].Message.Content,
				Usage: openAIUsage(completion.Usage),
			}, nil)
		}
	}

	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	return func(yield func(Chunk, error) bool) {
		streamResp := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer streamResp.Close()

		acc := openai.ChatCompletionAccumulator{}
		var usage *Usage
		for streamResp.Next() {
			chunk := streamResp.Current()
			if !acc.AddChunk(chunk) {
				yield(Chunk{}, errors.New("failed to accumulate stream"))
				return
			}
			if u := openAIUsage(chunk.Usage); u != nil {
				usage = u
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !yield(Chunk{Text: chunk.Choices[0].Delta.Content}, nil) {
					return
				}
			}
		}
		if err := streamResp.Err(); err != nil {
			yield(Chunk{}, err)
			return
		}
		if len(acc.Choices) == 0 {
			yield(Chunk{}, errors.New("empty streamed completion choices"))
			return
		}
		yield(Chunk{Usage: usage}, nil)
	}
}

func openAIParams(messages []chat.Message, opts Options) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(opts.Model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(opts.Temperature),
		TopP:        openai.Float(opts.TopP),
	}
}

func toOpenAIMessages(messages []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func openAIUsage(u openai.CompletionUsage) *Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	return &Usage{InputTokens: int(u.PromptTokens), OutputTokens: int(u.CompletionTokens)}
}
