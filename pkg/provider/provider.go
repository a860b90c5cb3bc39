// Package provider dispatches chat completions to one of the supported LLM
// backends.
package provider

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

// Kind identifies a completion backend.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGoogle    Kind = "google"
	KindLocal     Kind = "local"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindOpenAI, KindAnthropic, KindGoogle, KindLocal}

// ParseKind validates a backend tag. "ollama" is accepted as an alias for
// the local backend.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "ollama" {
		return KindLocal, nil
	}
	if slices.Contains(Kinds, k) {
		return k, nil
	}
	names := make([]string, len(Kinds))
	for i, kind := range Kinds {
		names[i] = string(kind)
	}
	return "", fmt.Errorf("unsupported provider: %q (supported: %s)", s, strings.Join(names, ", "))
}

var modelPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"gpt", KindOpenAI},
	{"o1", KindOpenAI},
	{"o3", KindOpenAI},
	{"o4", KindOpenAI},
	{"claude", KindAnthropic},
	{"gemini", KindGoogle},
	{"chat-bison", KindGoogle},
	{"llama", KindLocal},
	{"mistral", KindLocal},
	{"qwen", KindLocal},
	{"phi", KindLocal},
}

// SplitModel separates an optional "kind:" tag from a model string. A bare
// model name is matched against the known model prefixes.
func SplitModel(model string) (Kind, string, error) {
	model = strings.TrimSpace(model)
	if tag, name, ok := strings.Cut(model, ":"); ok {
		if kind, err := ParseKind(tag); err == nil {
			if name == "" {
				return "", "", fmt.Errorf("invalid model format: %q", model)
			}
			return kind, name, nil
		}
	}
	kind, err := KindForModel(model)
	if err != nil {
		return "", "", err
	}
	return kind, model, nil
}

// KindForModel returns the backend that serves a bare model name.
func KindForModel(model string) (Kind, error) {
	for _, p := range modelPrefixes {
		if strings.HasPrefix(model, p.prefix) {
			return p.kind, nil
		}
	}
	return "", fmt.Errorf("unknown model: %q", model)
}

// Options are the resolved sampling parameters for one request.
type Options struct {
	Model       string
	Temperature float64
	TopP        float64
}

// Usage reports token counts for a completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Chunk is one piece of a completion. The last chunk of a sequence carries
// the usage when the backend reports it.
type Chunk struct {
	Text  string
	Usage *Usage
}

// Provider produces completions. The returned sequence is lazy: no request is
// sent until it is ranged over.
type Provider interface {
	Complete(ctx context.Context, messages []chat.Message, opts Options, stream bool) iter.Seq2[Chunk, error]
}

// Collect drains a completion sequence into its full text and usage.
func Collect(seq iter.Seq2[Chunk, error]) (string, *Usage, error) {
	var b strings.Builder
	var usage *Usage
	for chunk, err := range seq {
		if err != nil {
			return b.String(), usage, err
		}
		b.WriteString(chunk.Text)
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	return b.String(), usage, nil
}

func splitSystem(messages []chat.Message) (string, []chat.Message) {
	var system []string
	rest := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == chat.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
