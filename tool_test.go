package agentmem

import (
	"context"
	"testing"

	"github.com/lattice-mind/agentmem/embedclient"
	"github.com/lattice-mind/agentmem/store"
)

type fakeStore struct {
	entries []MemoryEntry
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }
func (f *fakeStore) Upsert(ctx context.Context, entries []MemoryEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}
func (f *fakeStore) Delete(ctx context.Context, id string) error                { return nil }
func (f *fakeStore) DeleteByScope(ctx context.Context, scope Scope) error       { return nil }
func (f *fakeStore) VectorSearch(ctx context.Context, q []float32, opts store.SearchOptions) ([]store.SearchHit, error) {
	hits := make([]store.SearchHit, 0, len(f.entries))
	for _, e := range f.entries {
		if opts.HasScope && e.Scope != opts.Scope {
			continue
		}
		hits = append(hits, store.SearchHit{Entry: e, Distance: 0, Score: 1})
	}
	if opts.TopK < len(hits) {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}
func (f *fakeStore) GetByID(ctx context.Context, id string) (MemoryEntry, bool, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return MemoryEntry{}, false, nil
}
func (f *fakeStore) ListByScope(ctx context.Context, scope Scope) ([]MemoryEntry, error) {
	var out []MemoryEntry
	for _, e := range f.entries {
		if e.Scope == scope {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeStore) ListEmbeddingSpaces(ctx context.Context) ([]EmbeddingSpace, error) { return nil, nil }
func (f *fakeStore) Close() error                                                     { return nil }

type fakeEmbedder struct{ dim int }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, e.dim)
	}
	return out
}
func (e *fakeEmbedder) EmbedOne(ctx context.Context, text string) []float32 { return make([]float32, e.dim) }
func (e *fakeEmbedder) Dimension() int                                     { return e.dim }
func (e *fakeEmbedder) Model() string                                      { return "fake" }

var _ store.VectorStore = (*fakeStore)(nil)
var _ embedclient.Client = (*fakeEmbedder)(nil)

func newTestManager() *MemoryManager {
	fs := &fakeStore{}
	fe := &fakeEmbedder{dim: 3}
	m := NewMemoryManager(fs, fe, nil)
	_ = m.Init(context.Background())
	return m
}

func TestSearchTool_EmptyQuery(t *testing.T) {
	tool := NewSearchTool(newTestManager())
	res, err := tool.Handler(nil, map[string]interface{}{"query": "  "})
	if err == nil {
		t.Fatal("expected error for empty query")
	}
	if res.Display != "Search failed" {
		t.Fatalf("got display %q, want %q", res.Display, "Search failed")
	}
	if res.Body != err.Error() {
		t.Fatalf("body %q should equal error message %q", res.Body, err.Error())
	}
}

func TestSearchTool_UnknownScope(t *testing.T) {
	tool := NewSearchTool(newTestManager())
	res, err := tool.Handler(nil, map[string]interface{}{"query": "hi", "scope": "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown scope")
	}
	if res.Display != "Search failed" {
		t.Fatalf("got display %q, want %q", res.Display, "Search failed")
	}
}

func TestSearchTool_LimitOutOfRange(t *testing.T) {
	tool := NewSearchTool(newTestManager())
	res, err := tool.Handler(nil, map[string]interface{}{"query": "hi", "limit": 100})
	if err == nil {
		t.Fatal("expected error for out-of-range limit")
	}
	if res.Display != "Search failed" {
		t.Fatalf("got display %q, want %q", res.Display, "Search failed")
	}
}

func TestSearchTool_NoResults(t *testing.T) {
	tool := NewSearchTool(newTestManager())
	res, err := tool.Handler(nil, map[string]interface{}{"query": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantBody := `No relevant memory found for query: "hi"`
	if res.Body != wantBody {
		t.Fatalf("got body %q, want %q", res.Body, wantBody)
	}
	if res.Display != "No results" {
		t.Fatalf("got display %q, want %q", res.Display, "No results")
	}
}

func TestSearchTool_Success(t *testing.T) {
	fs := &fakeStore{entries: []MemoryEntry{
		{ID: "e1", Scope: ScopeProject, Text: "uses Go", Source: "go.mod"},
	}}
	fe := &fakeEmbedder{dim: 3}
	m := NewMemoryManager(fs, fe, nil)
	_ = m.Init(context.Background())

	tool := NewSearchTool(m)
	res, err := tool.Handler(nil, map[string]interface{}{"query": "language"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Body == "" {
		t.Fatal("expected non-empty body")
	}
	if res.Display != "Found 1 memories" {
		t.Fatalf("got display %q, want %q", res.Display, "Found 1 memories")
	}
}
