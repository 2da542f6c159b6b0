package agentmem

import (
	"os"

	"github.com/lattice-mind/agentmem/embedclient"
)

// Config holds process-level configuration read from the environment.
// This module is a library, like its project it grew out of: host
// applications are expected to construct Config directly in most
// cases; Load() is a convenience for processes that prefer env-var
// wiring, matching the exact keys in spec §6.
type Config struct {
	Provider   embedclient.Provider
	Model      string
	BaseURL    string
	OllamaHost string
	OpenAIKey  string
	DBPath     string
}

// Load reads Config from the process environment: EMBED_PROVIDER,
// EMBED_MODEL, EMBED_BASE_URL, OLLAMA_HOST, OPENAI_API_KEY, plus
// AGENTMEM_DB_PATH for the store's database file location.
func Load() Config {
	return Config{
		Provider:   embedclient.Provider(getenvDefault("EMBED_PROVIDER", string(embedclient.ProviderAuto))),
		Model:      os.Getenv("EMBED_MODEL"),
		BaseURL:    os.Getenv("EMBED_BASE_URL"),
		OllamaHost: getenvDefault("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		DBPath:     getenvDefault("AGENTMEM_DB_PATH", "./agentmem-data"),
	}
}

// ToFactoryConfig adapts Config into the embedclient.ProviderFactory's
// construction input.
func (c Config) ToFactoryConfig(localModelPath, localSharedLibPath string) embedclient.FactoryConfig {
	return embedclient.FactoryConfig{
		Provider:           c.Provider,
		Model:              c.Model,
		BaseURL:            c.BaseURL,
		OllamaHost:         c.OllamaHost,
		OpenAIKey:          c.OpenAIKey,
		LocalModelPath:     localModelPath,
		LocalSharedLibPath: localSharedLibPath,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
