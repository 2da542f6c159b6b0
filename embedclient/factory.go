package embedclient

import (
	"context"
	"fmt"
	"log"
)

// Provider identifies one rung of the selection ladder.
type Provider string

const (
	ProviderAuto     Provider = "auto"
	ProviderOpenAI   Provider = "openai"
	ProviderOllama   Provider = "ollama"
	ProviderFastEmb  Provider = "fastembed"
	ProviderEndpoint Provider = "endpoint"
)

// FactoryConfig mirrors the engine's env-driven Config (spec §6) plus
// whatever local model assets this process has on disk.
type FactoryConfig struct {
	Provider   Provider
	Model      string
	BaseURL    string // custom endpoint base URL, enables the endpoint rung
	OllamaHost string // default http://localhost:11434
	OpenAIKey  string

	// Local inference asset locations, used only for the fastembed rung.
	LocalModelPath     string
	LocalSharedLibPath string
}

// ProviderFactory picks exactly one Client at process start and holds it
// for the process lifetime (spec §9's one piece of global state).
type ProviderFactory struct {
	client          Client
	activeProvider  Provider
	activeModel     string
	activeDimension int
}

// NewProviderFactory runs the strict local-first selection ladder
// (spec §4.2) and returns a ready factory.
func NewProviderFactory(ctx context.Context, cfg FactoryConfig) (*ProviderFactory, error) {
	f := &ProviderFactory{}

	if cfg.Provider != "" && cfg.Provider != ProviderAuto {
		client, err := f.constructPinned(cfg)
		if err != nil {
			return nil, fmt.Errorf("construct pinned provider %q: %w", cfg.Provider, err)
		}
		f.set(cfg.Provider, client)
		return f, nil
	}

	ollamaHost := cfg.OllamaHost
	if ollamaHost == "" {
		ollamaHost = "http://localhost:11434"
	}
	if ProbeDaemon(ctx, ollamaHost) {
		model := cfg.Model
		if model == "" {
			model = defaultModelFor(ProviderOllama)
		}
		client, err := NewDaemonClient(DaemonConfig{
			BaseURL:   ollamaHost,
			Model:     model,
			Dimension: dimensionFor(model),
		})
		if err == nil {
			f.noteHostedShadowed(cfg)
			f.set(ProviderOllama, client)
			return f, nil
		}
		log.Printf("[ProviderFactory] local daemon probe succeeded but construction failed, falling through: %v", err)
	}

	if cfg.BaseURL != "" {
		model := cfg.Model
		if model == "" {
			model = defaultModelFor(ProviderEndpoint)
		}
		client, err := NewDaemonClient(DaemonConfig{
			BaseURL:   cfg.BaseURL,
			Model:     model,
			Dimension: dimensionFor(model),
		})
		if err == nil {
			f.noteHostedShadowed(cfg)
			f.set(ProviderEndpoint, client)
			return f, nil
		}
		log.Printf("[ProviderFactory] custom endpoint configured but construction failed, falling through: %v", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModelFor(ProviderFastEmb)
	}
	client, err := NewLocalInferenceClient(LocalConfig{
		ModelPath:     cfg.LocalModelPath,
		SharedLibPath: cfg.LocalSharedLibPath,
		Model:         model,
		Dimension:     dimensionFor(model),
	})
	if err != nil {
		return nil, fmt.Errorf("construct local inference client: %w", err)
	}
	f.noteHostedShadowed(cfg)
	f.set(ProviderFastEmb, client)
	return f, nil
}

func (f *ProviderFactory) noteHostedShadowed(cfg FactoryConfig) {
	if cfg.OpenAIKey != "" {
		log.Printf("[ProviderFactory] a hosted credential is present but local-first selection was honored; set EMBED_PROVIDER=openai to override")
	}
}

func (f *ProviderFactory) constructPinned(cfg FactoryConfig) (Client, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModelFor(cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewHostedClient(HostedConfig{APIKey: cfg.OpenAIKey, Model: model, Dimension: dimensionFor(model)})
	case ProviderOllama:
		host := cfg.OllamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewDaemonClient(DaemonConfig{BaseURL: host, Model: model, Dimension: dimensionFor(model)})
	case ProviderEndpoint:
		return NewDaemonClient(DaemonConfig{BaseURL: cfg.BaseURL, Model: model, Dimension: dimensionFor(model)})
	case ProviderFastEmb:
		return NewLocalInferenceClient(LocalConfig{ModelPath: cfg.LocalModelPath, SharedLibPath: cfg.LocalSharedLibPath, Model: model, Dimension: dimensionFor(model)})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (f *ProviderFactory) set(p Provider, client Client) {
	f.client = client
	f.activeProvider = p
	f.activeModel = client.Model()
	f.activeDimension = client.Dimension()
}

// Client returns the process-wide selected embedding client.
func (f *ProviderFactory) Client() Client { return f.client }

// ActiveProvider reports which rung of the ladder was selected.
func (f *ProviderFactory) ActiveProvider() Provider { return f.activeProvider }

// ActiveModel reports the selected client's model identifier.
func (f *ProviderFactory) ActiveModel() string { return f.activeModel }

// ActiveDimension reports the selected client's vector dimension.
func (f *ProviderFactory) ActiveDimension() int { return f.activeDimension }

var defaultModelDim = map[string]int{
	"text-embedding-3-small": 1536,
	"nomic-embed-text":       768,
	"fast-bge-small-en-v1.5": 384,
}

const fallbackDimension = 768

func dimensionFor(model string) int {
	if d, ok := defaultModelDim[model]; ok {
		return d
	}
	return fallbackDimension
}

func defaultModelFor(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "text-embedding-3-small"
	case ProviderOllama, ProviderEndpoint:
		return "nomic-embed-text"
	default:
		return "fast-bge-small-en-v1.5"
	}
}
