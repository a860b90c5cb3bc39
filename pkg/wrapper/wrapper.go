// Package wrapper implements named chat personas: seed messages plus model
// parameters, dispatched to the provider that serves the model.
package wrapper

import (
	"context"
	"iter"

	"github.com/grid-link-inc/gpt-cli/pkg/chat"
	"github.com/grid-link-inc/gpt-cli/pkg/config"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
	"github.com/grid-link-inc/gpt-cli/pkg/provider"
)

// Option configures optional dependencies for a Wrapper.
type Option func(*deps)

type deps struct {
	logger  loggerpkg.Logger
	factory provider.Factory
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(d *deps) {
		d.logger = l
	}
}

// WithFactory sets the provider source.
func WithFactory(f provider.Factory) Option {
	return func(d *deps) {
		d.factory = f
	}
}

// Wrapper is a resolved chat persona.
type Wrapper struct {
	name    string
	config  config.WrapperConfig
	factory provider.Factory
	logger  loggerpkg.Logger
}

// New builds a Wrapper from a resolved config. Without WithFactory, providers
// are created from empty credentials.
func New(name string, cfg config.WrapperConfig, opts ...Option) *Wrapper {
	d := deps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	if d.factory == nil {
		d.factory = provider.NewRegistry(provider.Credentials{}, provider.WithLogger(d.logger))
	}
	return &Wrapper{
		name:    name,
		config:  cfg.Merge(config.WrapperConfig{}),
		factory: d.factory,
		logger:  d.logger,
	}
}

// Name returns the wrapper name.
func (w *Wrapper) Name() string { return w.name }

// InitMessages returns a fresh copy of the seed messages.
func (w *Wrapper) InitMessages() []chat.Message {
	return chat.CloneMessages(w.config.Messages)
}

// Params resolves the request parameters: overrides first, then the wrapper
// config, then the global defaults.
func (w *Wrapper) Params(overrides chat.Overrides) provider.Options {
	return provider.Options{
		Model:       config.Resolve(config.DefaultModel, overrides.Model, w.config.Model),
		Temperature: config.Resolve(config.DefaultTemperature, overrides.Temperature, w.config.Temperature),
		TopP:        config.Resolve(config.DefaultTopP, overrides.TopP, w.config.TopP),
	}
}

// CompleteChat sends messages to the provider serving the resolved model.
// The returned error is non-nil only when no provider could be selected.
func (w *Wrapper) CompleteChat(ctx context.Context, messages []chat.Message, overrides chat.Overrides, stream bool) (iter.Seq2[provider.Chunk, error], error) {
	opts := w.Params(overrides)
	kind, model, err := provider.SplitModel(opts.Model)
	if err != nil {
		return nil, err
	}
	p, err := w.factory.Provider(ctx, kind)
	if err != nil {
		return nil, err
	}
	opts.Model = model

	loggerpkg.Debug(w.logger, "complete chat", map[string]any{
		"wrapper":     w.name,
		"provider":    string(kind),
		"model":       opts.Model,
		"temperature": opts.Temperature,
		"top_p":       opts.TopP,
		"messages":    len(messages),
		"stream":      stream,
	})
	return p.Complete(ctx, chat.CloneMessages(messages), opts, stream), nil
}
