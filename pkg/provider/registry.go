package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grid-link-inc/gpt-cli/pkg/config"
	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
)

// Credentials carries what each backend needs to authenticate.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	GoogleKey     string
	LocalBaseURL  string
	LocalModels   map[string]string
}

// CredentialsFromConfig extracts backend credentials from the loaded config.
func CredentialsFromConfig(cfg config.Config) Credentials {
	return Credentials{
		OpenAIKey:     cfg.OpenAIKey(),
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		AnthropicKey:  cfg.AnthropicAPIKey,
		GoogleKey:     cfg.GoogleAPIKey,
		LocalBaseURL:  cfg.LocalBaseURL,
		LocalModels:   cfg.LocalModels,
	}
}

// Factory returns the provider serving a backend kind.
type Factory interface {
	Provider(ctx context.Context, kind Kind) (Provider, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithProvider registers a prebuilt provider for kind, bypassing client
// construction.
func WithProvider(kind Kind, p Provider) Option {
	return func(r *Registry) {
		r.providers[kind] = p
	}
}

// Registry builds providers on first use and caches them.
type Registry struct {
	creds  Credentials
	logger loggerpkg.Logger

	mu        sync.Mutex
	providers map[Kind]Provider
}

// NewRegistry creates a Registry for the given credentials.
func NewRegistry(creds Credentials, opts ...Option) *Registry {
	r := &Registry{
		creds:     creds,
		logger:    loggerpkg.NopLogger{},
		providers: map[Kind]Provider{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Provider returns the cached provider for kind, creating it when needed.
func (r *Registry) Provider(ctx context.Context, kind Kind) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[kind]; ok {
		return p, nil
	}
	p, err := r.build(ctx, kind)
	if err != nil {
		return nil, err
	}
	loggerpkg.Debug(r.logger, "provider ready", map[string]any{"kind": string(kind)})
	r.providers[kind] = p
	return p, nil
}

func (r *Registry) build(ctx context.Context, kind Kind) (Provider, error) {
	switch kind {
	case KindOpenAI:
		if r.creds.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not provided. Set api_key in the config file or OPENAI_API_KEY")
		}
		return NewOpenAI(r.creds.OpenAIKey, r.creds.OpenAIBaseURL), nil
	case KindAnthropic:
		if r.creds.AnthropicKey == "" {
			return nil, fmt.Errorf("Anthropic API key not provided. Set anthropic_api_key in the config file or ANTHROPIC_API_KEY")
		}
		return NewAnthropic(r.creds.AnthropicKey), nil
	case KindGoogle:
		if r.creds.GoogleKey == "" {
			return nil, fmt.Errorf("Google API key not provided. Set google_api_key in the config file or GOOGLE_API_KEY")
		}
		return NewGoogle(ctx, r.creds.GoogleKey)
	case KindLocal:
		return NewLocal(LocalBaseURL(r.creds.LocalBaseURL), r.creds.LocalModels), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", kind)
	}
}

// LocalBaseURL resolves the local runner endpoint. OLLAMA_HOST replaces the
// built-in default but not an explicitly configured URL.
func LocalBaseURL(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" && configured != config.DefaultConfig().LocalBaseURL {
		return configured
	}
	if host := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		return strings.TrimRight(host, "/") + "/v1"
	}
	return config.DefaultConfig().LocalBaseURL
}
