package store

import (
	"context"
	"fmt"
)

// Stats is a lightweight per-space diagnostic snapshot; the retrieval
// hot path never reads it.
type Stats struct {
	Table    string
	RowCount int
}

// Stats counts the rows currently in this store's table (the
// placeholder row is always deleted during Init, so this reflects
// live entries only).
func (s *FileVectorStore) Stats(ctx context.Context) (Stats, error) {
	q := fmt.Sprintf(`SELECT count(*) FROM "%s"`, s.table)
	var count int
	if err := s.db.QueryRowContext(ctx, q).Scan(&count); err != nil {
		return Stats{}, wrap("stats", err)
	}
	return Stats{Table: s.table, RowCount: count}, nil
}
