package agentmem

import (
	"os"
	"testing"

	"github.com/lattice-mind/agentmem/embedclient"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("EMBED_PROVIDER")
	os.Unsetenv("OLLAMA_HOST")
	os.Unsetenv("AGENTMEM_DB_PATH")

	cfg := Load()
	if cfg.Provider != embedclient.ProviderAuto {
		t.Fatalf("expected default provider auto, got %q", cfg.Provider)
	}
	if cfg.OllamaHost != "http://localhost:11434" {
		t.Fatalf("unexpected default ollama host: %q", cfg.OllamaHost)
	}
	if cfg.DBPath != "./agentmem-data" {
		t.Fatalf("unexpected default db path: %q", cfg.DBPath)
	}
}

func TestLoad_RespectsEnv(t *testing.T) {
	os.Setenv("EMBED_PROVIDER", "openai")
	defer os.Unsetenv("EMBED_PROVIDER")

	cfg := Load()
	if cfg.Provider != embedclient.ProviderOpenAI {
		t.Fatalf("expected provider openai, got %q", cfg.Provider)
	}
}
