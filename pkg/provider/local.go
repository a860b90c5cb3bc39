package provider

import (
	"context"
	"iter"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

// localAPIKey is sent to local runners that ignore authentication but whose
// OpenAI-compatible endpoint still expects the header.
const localAPIKey = "ollama"

// Local serves models from an Ollama-compatible runner through its
// OpenAI-compatible endpoint.
type Local struct {
	inner  *OpenAI
	models map[string]string
}

// NewLocal creates a Local provider. models maps configured names to the
// names the runner serves; unmapped names are passed through. Keys are also
// matched lowercased since the config loader folds map keys.
func NewLocal(baseURL string, models map[string]string) *Local {
	return &Local{
		inner:  NewOpenAI(localAPIKey, baseURL),
		models: models,
	}
}

// ServedModel returns the runner-side name for model.
func (p *Local) ServedModel(model string) string {
	for _, key := range []string{model, strings.ToLower(model)} {
		if served, ok := p.models[key]; ok && served != "" {
			return served
		}
	}
	return model
}

// Complete implements Provider.
func (p *Local) Complete(ctx context.Context, messages []chat.Message, opts Options, stream bool) iter.Seq2[Chunk, error] {
	opts.Model = p.ServedModel(opts.Model)
	return p.inner.Complete(ctx, messages, opts, stream)
}
