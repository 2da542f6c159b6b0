// Package store implements the file-backed, embedding-space-isolated
// vector store: one SQLite database file per configured db_path, one
// vec0 virtual table per embedding space.
package store

import (
	"context"
)

// SearchOptions configures VectorStore.VectorSearch.
type SearchOptions struct {
	TopK     int
	Scope    Scope // zero value means "no scope filter"
	HasScope bool
	MinScore float64
	HasMin   bool
}

// SearchHit is a single vector_search result: the stored entry plus its
// raw distance and derived score.
type SearchHit struct {
	Entry    MemoryEntry
	Distance float64
	Score    float64
}

// VectorStore is the per-space persistent KV+ANN contract (spec §4.3).
// Every method is safe for concurrent use once Init has returned.
type VectorStore interface {
	// Init is idempotent: it creates or opens this store's table,
	// resolving concurrent first-time-creation races.
	Init(ctx context.Context) error

	// Upsert validates every entry's dimension and lineage against this
	// store's space before any mutation, then replaces rows by id via
	// chunked delete-by-id followed by inserting the entries.
	Upsert(ctx context.Context, entries []MemoryEntry) error

	// Delete removes a single row by id. A missing id is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByScope removes every row matching scope.
	DeleteByScope(ctx context.Context, scope Scope) error

	// VectorSearch returns the nearest entries to queryVec in this
	// store's space, each carrying its raw distance and derived score.
	VectorSearch(ctx context.Context, queryVec []float32, opts SearchOptions) ([]SearchHit, error)

	GetByID(ctx context.Context, id string) (MemoryEntry, bool, error)
	ListByScope(ctx context.Context, scope Scope) ([]MemoryEntry, error)

	// ListEmbeddingSpaces enumerates every memory_entries__* table
	// present in the backing database file, for migration/diagnostics.
	ListEmbeddingSpaces(ctx context.Context) ([]EmbeddingSpace, error)

	Close() error
}
