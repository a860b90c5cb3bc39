package provider

import (
	"context"
	"fmt"
	"iter"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"google.golang.org/genai"
)

// Google serves completions through the Gemini API.
type Google struct {
	client *genai.Client
}

// NewGoogle creates a Google provider.
func NewGoogle(ctx context.Context, apiKey string) (*Google, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}
	return &Google{client: client}, nil
}

// Complete implements Provider.
func (p *Google) Complete(ctx context.Context, messages []chat.Message, opts Options, stream bool) iter.Seq2[Chunk, error] {
	contents, cfg := googleRequest(messages, opts)
	if !stream {
		return func(yield func(Chunk, error) bool) {
			resp, err := p.client.Models.GenerateContent(ctx, opts.Model, contents, cfg)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			yield(Chunk{Text: resp.Text(), Usage: googleUsage(resp)}, nil)
		}
	}

	return func(yield func(Chunk, error) bool) {
		var usage *Usage
		for resp, err := range p.client.Models.GenerateContentStream(ctx, opts.Model, contents, cfg) {
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			if u := googleUsage(resp); u != nil {
				usage = u
			}
			if text := resp.Text(); text != "" {
				if !yield(Chunk{Text: text}, nil) {
					return
				}
			}
		}
		yield(Chunk{Usage: usage}, nil)
	}
}

func googleRequest(messages []chat.Message, opts Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := splitSystem(messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
		TopP:        genai.Ptr(float32(opts.TopP)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role genai.Role = genai.RoleUser
		if m.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents, cfg
}

func googleUsage(resp *genai.GenerateContentResponse) *Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
