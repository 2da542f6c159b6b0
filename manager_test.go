package agentmem

import (
	"context"
	"testing"
)

func TestMemoryManager_RetrievalBeforeInitReturnsEmpty(t *testing.T) {
	fs := &fakeStore{}
	fe := &fakeEmbedder{dim: 3}
	m := NewMemoryManager(fs, fe, nil)

	if got := m.GetProjectCore(context.Background()); got != "" {
		t.Fatalf("expected empty before init, got %q", got)
	}
	if got := m.RetrieveRelevant(context.Background(), RetrieveRequest{Query: "q"}, RetrieveOptions{}); len(got) != 0 {
		t.Fatalf("expected empty before init, got %v", got)
	}
}

func TestMemoryManager_InitIdempotent(t *testing.T) {
	m := newTestManager()
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("second Init should be a no-op, got: %v", err)
	}
}

func TestMemoryManager_GetProjectCore(t *testing.T) {
	fs := &fakeStore{entries: []MemoryEntry{
		{ID: "e1", Scope: ScopeProject, Text: "entry one"},
		{ID: "e2", Scope: ScopeGlobal, Text: "entry two"},
	}}
	fe := &fakeEmbedder{dim: 3}
	m := NewMemoryManager(fs, fe, nil)
	_ = m.Init(context.Background())

	got := m.GetProjectCore(context.Background())
	want := "- entry one"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMemoryManager_RetrieveRelevant_CancelledBeforeEmbed(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hits := m.RetrieveRelevant(ctx, RetrieveRequest{Query: "q"}, RetrieveOptions{})
	if len(hits) != 0 {
		t.Fatalf("expected empty on cancelled context, got %v", hits)
	}
}

func TestMemoryManager_RetrieveRelevant_NoLLMTopEight(t *testing.T) {
	var entries []MemoryEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, MemoryEntry{ID: string(rune('a' + i)), Scope: ScopeProject, Text: "x"})
	}
	fs := &fakeStore{entries: entries}
	fe := &fakeEmbedder{dim: 3}
	m := NewMemoryManager(fs, fe, nil)
	_ = m.Init(context.Background())

	hits := m.RetrieveRelevant(context.Background(), RetrieveRequest{Query: "q"}, RetrieveOptions{TopK: 20})
	if len(hits) != 8 {
		t.Fatalf("expected 8 hits with no LLM filter, got %d", len(hits))
	}
}

func TestMemoryManager_Close(t *testing.T) {
	m := newTestManager()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := m.GetProjectCore(context.Background()); got != "" {
		t.Fatalf("expected empty after close, got %q", got)
	}
}
