package agentmem

import "testing"

func TestEmbeddingSpace_Canonical(t *testing.T) {
	s := NewEmbeddingSpace("openai", "text-embedding-3-small", 1536, NormNone)
	got := s.Canonical()
	want := "openai|text-embedding-3-small|1536|none|v1"
	if got != want {
		t.Fatalf("Canonical() = %q, want %q", got, want)
	}
}

func TestEmbeddingSpace_TableName(t *testing.T) {
	s := NewEmbeddingSpace("Local-Daemon", "nomic-embed-text", 768, NormL2)
	got := s.TableName()
	want := "memory_entries__local_daemon__nomic_embed_text__768__l2__v1"
	if got != want {
		t.Fatalf("TableName() = %q, want %q", got, want)
	}
}

func TestDistanceToScore_Monotone(t *testing.T) {
	a := DistanceToScore(0.1)
	b := DistanceToScore(0.5)
	if !(a > b) {
		t.Fatalf("expected score to decrease as distance increases: a=%v b=%v", a, b)
	}
	if a <= 0 || a > 1 || b <= 0 || b > 1 {
		t.Fatalf("expected scores in (0,1]: a=%v b=%v", a, b)
	}
}

func TestScope_Valid(t *testing.T) {
	if !ScopeProject.Valid() || !ScopeGlobal.Valid() {
		t.Fatal("expected project/global to be valid")
	}
	if Scope("bogus").Valid() {
		t.Fatal("expected bogus scope to be invalid")
	}
}
