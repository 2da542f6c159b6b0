package embedclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProviderFactory_PrefersLocalDaemonOverHostedCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[1,2,3]]}`))
		}
	}))
	defer srv.Close()

	f, err := NewProviderFactory(context.Background(), FactoryConfig{
		Provider:   ProviderAuto,
		OllamaHost: srv.URL,
		OpenAIKey:  "sk-should-not-be-used",
	})
	if err != nil {
		t.Fatalf("NewProviderFactory: %v", err)
	}
	if f.ActiveProvider() != ProviderOllama {
		t.Fatalf("expected ollama rung selected, got %s", f.ActiveProvider())
	}
}

func TestProviderFactory_FallsBackToLocalInference(t *testing.T) {
	f, err := NewProviderFactory(context.Background(), FactoryConfig{
		Provider:   ProviderAuto,
		OllamaHost: "http://127.0.0.1:1", // unreachable
	})
	if err != nil {
		t.Fatalf("NewProviderFactory: %v", err)
	}
	if f.ActiveProvider() != ProviderFastEmb {
		t.Fatalf("expected fastembed rung selected, got %s", f.ActiveProvider())
	}
	if f.ActiveDimension() != 384 {
		t.Fatalf("expected default fastembed dimension 384, got %d", f.ActiveDimension())
	}
}

func TestProviderFactory_ExplicitOverride(t *testing.T) {
	_, err := NewProviderFactory(context.Background(), FactoryConfig{Provider: ProviderOpenAI})
	if err == nil {
		t.Fatal("expected pinned openai provider with no API key to fail construction")
	}
}

func TestDimensionFor_FallsBackTo768(t *testing.T) {
	if d := dimensionFor("some-unknown-model"); d != fallbackDimension {
		t.Fatalf("expected fallback dimension %d, got %d", fallbackDimension, d)
	}
}
