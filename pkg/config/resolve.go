package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
)

// Global fallbacks used when neither an override nor a wrapper sets a field.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
)

var (
	ErrUnknownWrapper   = errors.New("unknown wrapper")
	ErrUnknownAssistant = errors.New("unknown assistant")
)

// WrapperConfig is a named chat persona. Nil fields are unset.
type WrapperConfig struct {
	Messages    []chat.Message `mapstructure:"messages"`
	Model       *string        `mapstructure:"model"`
	Temperature *float64       `mapstructure:"temperature"`
	TopP        *float64       `mapstructure:"top_p"`
}

// AssistantConfig binds a name to a remote assistant id and seed messages.
type AssistantConfig struct {
	ID       string         `mapstructure:"id"`
	Messages []chat.Message `mapstructure:"messages"`
}

// Resolve returns the value of the first non-nil layer, in precedence order
// (explicit override, named config, builtin default), or fallback when every
// layer is unset.
func Resolve[T any](fallback T, layers ...*T) T {
	for _, l := range layers {
		if l != nil {
			return *l
		}
	}
	return fallback
}

func resolvePtr[T any](layers ...*T) *T {
	for _, l := range layers {
		if l != nil {
			v := *l
			return &v
		}
	}
	return nil
}

func resolveMessages(layers ...[]chat.Message) []chat.Message {
	for _, l := range layers {
		if l != nil {
			return chat.CloneMessages(l)
		}
	}
	return nil
}

// Merge returns a new WrapperConfig where each field unset in w falls back
// to base. Neither input is modified.
func (w WrapperConfig) Merge(base WrapperConfig) WrapperConfig {
	return WrapperConfig{
		Messages:    resolveMessages(w.Messages, base.Messages),
		Model:       resolvePtr(w.Model, base.Model),
		Temperature: resolvePtr(w.Temperature, base.Temperature),
		TopP:        resolvePtr(w.TopP, base.TopP),
	}
}

// WithOverrides returns a copy of w with every set override applied.
func (w WrapperConfig) WithOverrides(o chat.Overrides) WrapperConfig {
	return WrapperConfig{
		Messages:    chat.CloneMessages(w.Messages),
		Model:       resolvePtr(o.Model, w.Model),
		Temperature: resolvePtr(o.Temperature, w.Temperature),
		TopP:        resolvePtr(o.TopP, w.TopP),
	}
}

// Merge returns a new AssistantConfig where each field unset in a falls back
// to base.
func (a AssistantConfig) Merge(base AssistantConfig) AssistantConfig {
	id := a.ID
	if id == "" {
		id = base.ID
	}
	return AssistantConfig{
		ID:       id,
		Messages: resolveMessages(a.Messages, base.Messages),
	}
}

// ResolveWrapper looks name up in custom, then in the builtin wrappers, and
// applies the command-line overrides on top. Names are case-insensitive.
func ResolveWrapper(name string, custom map[string]WrapperConfig, overrides chat.Overrides) (WrapperConfig, error) {
	name = strings.ToLower(name)
	builtins := DefaultWrappers()
	var resolved WrapperConfig
	if w, ok := custom[name]; ok {
		resolved = w.Merge(builtins[name])
	} else if w, ok := builtins[name]; ok {
		resolved = w.Merge(WrapperConfig{})
	} else {
		return WrapperConfig{}, fmt.Errorf("%w: %s (available: %s)", ErrUnknownWrapper, name, strings.Join(WrapperNames(custom), ", "))
	}
	return resolved.WithOverrides(overrides), nil
}

// ResolveAssistant looks name up in custom, then in the builtin assistants.
func ResolveAssistant(name string, custom map[string]AssistantConfig) (AssistantConfig, error) {
	name = strings.ToLower(name)
	builtins := DefaultAssistants()
	var resolved AssistantConfig
	if a, ok := custom[name]; ok {
		resolved = a.Merge(builtins[name])
	} else if a, ok := builtins[name]; ok {
		resolved = a.Merge(AssistantConfig{})
	} else {
		return AssistantConfig{}, fmt.Errorf("%w: %s", ErrUnknownAssistant, name)
	}
	if resolved.ID == "" {
		return AssistantConfig{}, fmt.Errorf("assistant %q has no id", name)
	}
	return resolved, nil
}

// WrapperNames returns the sorted union of builtin and custom wrapper names.
func WrapperNames(custom map[string]WrapperConfig) []string {
	seen := map[string]struct{}{}
	for name := range DefaultWrappers() {
		seen[name] = struct{}{}
	}
	for name := range custom {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultAssistants holds builtin assistant definitions. There are none:
// assistants live remotely and must be named in the config file.
func DefaultAssistants() map[string]AssistantConfig {
	return map[string]AssistantConfig{}
}

// DefaultWrappers returns the builtin wrappers. A fresh map is built on every
// call so callers cannot mutate shared state.
func DefaultWrappers() map[string]WrapperConfig {
	uname := platformDescription()
	return map[string]WrapperConfig{
		"dev": {
			Messages: []chat.Message{
				{
					Role: chat.RoleSystem,
					Content: "You are a helpful assistant who is an expert in software development. " +
						"You are helping a user who is a software developer. Your responses are short and concise. " +
						"You include code snippets when appropriate. Code snippets are formatted using Markdown with a correct language tag. " +
						"User's `uname`: " + uname,
				},
				{
					Role:    chat.RoleUser,
					Content: "Your responses must be short and concise. Do not include explanations unless asked.",
				},
				{
					Role:    chat.RoleAssistant,
					Content: "Understood.",
				},
			},
		},
		"general": {
			Messages: []chat.Message{},
		},
		"bash": {
			Messages: []chat.Message{
				{
					Role: chat.RoleSystem,
					Content: "You output only valid and correct shell commands according to the user's prompt. " +
						"You don't provide any explanations or any other text that is not valid shell commands. " +
						"User's `uname`: " + uname + ". User's `$SHELL`: " + os.Getenv("SHELL") + ".",
				},
			},
		},
	}
}

func platformDescription() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("system=%s, node=%s, machine=%s", runtime.GOOS, host, runtime.GOARCH)
}

func normalizeMessages(messages []chat.Message) ([]chat.Message, error) {
	if messages == nil {
		return nil, nil
	}
	out := make([]chat.Message, len(messages))
	for i, m := range messages {
		if m.Role == "" {
			return nil, fmt.Errorf("message %d: %w", i, errEmptyRole)
		}
		role, err := chat.ParseRole(string(m.Role))
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out[i] = chat.Message{Role: role, Content: m.Content}
	}
	return out, nil
}
