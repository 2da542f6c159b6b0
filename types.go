package agentmem

import "github.com/lattice-mind/agentmem/store"

// Scope, Norm, MemoryEntry and EmbeddingSpace are defined in the store
// package (the leaf both this package and store's backend depend on) and
// aliased here so callers of this package never need to import store
// directly for the shared data model.
type (
	Scope          = store.Scope
	Norm           = store.Norm
	MemoryEntry    = store.MemoryEntry
	EmbeddingSpace = store.EmbeddingSpace
)

const (
	ScopeProject = store.ScopeProject
	ScopeGlobal  = store.ScopeGlobal
	NormNone     = store.NormNone
	NormL2       = store.NormL2
)

// NewEmbeddingSpace and DistanceToScore are re-exported from store for the
// same reason.
var (
	NewEmbeddingSpace = store.NewEmbeddingSpace
	DistanceToScore   = store.DistanceToScore
)

// MemoryHit is returned from retrieval. Score is a ranking-only monotone
// transform of raw L2 distance, never a calibrated probability.
type MemoryHit struct {
	ID            string
	Text          string
	Score         float64
	Source        string
	TokenEstimate int
}

// ParsedCandidate is the RelevanceFilter's view of an over-retrieved hit.
type ParsedCandidate struct {
	ID      string
	Score   float64
	Snippet string
	Source  string
}

// EstimateTokens is the engine-wide advisory token heuristic: ceil(len/4).
// It is never used to enforce a budget.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
