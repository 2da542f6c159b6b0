package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDaemonClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req daemonEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := daemonEmbedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 2, 3})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewDaemonClient(DaemonConfig{BaseURL: srv.URL, Model: "nomic-embed-text", Dimension: 3})
	if err != nil {
		t.Fatalf("NewDaemonClient: %v", err)
	}

	vectors := c.Embed(context.Background(), []string{"a", "b"})
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 1 {
		t.Fatalf("unexpected vector: %v", vectors[0])
	}
}

func TestDaemonClient_Embed_DegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewDaemonClient(DaemonConfig{BaseURL: srv.URL, Model: "m", Dimension: 4})
	if err != nil {
		t.Fatalf("NewDaemonClient: %v", err)
	}
	vectors := c.Embed(context.Background(), []string{"a"})
	if len(vectors) != 1 || len(vectors[0]) != 4 {
		t.Fatalf("expected one zero vector of dim 4, got %v", vectors)
	}
	for _, f := range vectors[0] {
		if f != 0 {
			t.Fatalf("expected zero vector on failure, got %v", vectors[0])
		}
	}
}

func TestDaemonClient_Embed_Empty(t *testing.T) {
	c, err := NewDaemonClient(DaemonConfig{BaseURL: "http://unused", Model: "m", Dimension: 4})
	if err != nil {
		t.Fatalf("NewDaemonClient: %v", err)
	}
	if vecs := c.Embed(context.Background(), nil); vecs != nil {
		t.Fatalf("expected nil for empty input, got %v", vecs)
	}
}

func TestDaemonClient_Embed_Cancelled(t *testing.T) {
	c, err := NewDaemonClient(DaemonConfig{BaseURL: "http://unused", Model: "m", Dimension: 4})
	if err != nil {
		t.Fatalf("NewDaemonClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if vecs := c.Embed(ctx, []string{"a"}); vecs != nil {
		t.Fatalf("expected nil on cancelled context, got %v", vecs)
	}
}

func TestProbeDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !ProbeDaemon(context.Background(), srv.URL) {
		t.Fatal("expected ProbeDaemon to succeed")
	}
	if ProbeDaemon(context.Background(), "http://127.0.0.1:1") {
		t.Fatal("expected ProbeDaemon to fail against an unreachable host")
	}
}
