package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// deserializeFloat32 decodes a sqlite-vec float32 blob (raw little-endian
// IEEE-754 float32s, the wire format produced by sqlite_vec.SerializeFloat32)
// back into a Go slice.
func deserializeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob: %d bytes", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// deleteChunkSize bounds the IN-list size of a single chunked delete,
// matching the spec's "IN-lists of <= 200" requirement.
const deleteChunkSize = 200

const placeholderID = "__placeholder__"

// FileVectorStore is a VectorStore backed by a single sqlite-vec vec0
// virtual table, one per embedding space, inside one SQLite database
// file at Config.DBPath.
type FileVectorStore struct {
	db    *sql.DB
	space EmbeddingSpace
	table string
	audit AuditLogger

	writeMu sync.Mutex // single-writer discipline for upsert/delete
}

// FileVectorStoreConfig configures a FileVectorStore.
type FileVectorStoreConfig struct {
	DBPath string // path to the SQLite database file
	Space  EmbeddingSpace
	Audit  AuditLogger // optional; defaults to NoopAuditLogger
}

// NewFileVectorStore opens (but does not yet initialize) the database
// file at cfg.DBPath. Call Init before any other method.
func NewFileVectorStore(cfg FileVectorStoreConfig) (*FileVectorStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path required")
	}
	if cfg.Space.Dimension <= 0 {
		return nil, fmt.Errorf("embedding space dimension required")
	}
	// Register the vec0 module for every connection this process opens.
	sqlite_vec.Auto()
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	audit := cfg.Audit
	if audit == nil {
		audit = NoopAuditLogger{}
	}
	return &FileVectorStore{
		db:    db,
		space: cfg.Space,
		table: cfg.Space.TableName(),
		audit: audit,
	}, nil
}

// Init implements the documented concurrent-creation race handling:
// try open_table; on failure try create_table with a placeholder row
// then delete it; on creation failure (another creator won), open_table
// again. Idempotent: a second Init is a no-op.
func (s *FileVectorStore) Init(ctx context.Context) error {
	if err := s.openTable(ctx); err == nil {
		return nil
	}

	if err := s.createTable(ctx); err != nil {
		// Another goroutine/process may have won the race; retry open.
		if openErr := s.openTable(ctx); openErr == nil {
			return nil
		}
		return wrap("init", err)
	}

	if err := s.insertPlaceholder(ctx); err != nil {
		return wrap("init", err)
	}
	if err := s.deleteRow(ctx, placeholderID); err != nil {
		return wrap("init", err)
	}
	return nil
}

func (s *FileVectorStore) openTable(ctx context.Context) error {
	q := fmt.Sprintf(`SELECT 1 FROM "%s" LIMIT 1`, s.table)
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *FileVectorStore) createTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS "%s" USING vec0(
		embedding float[%d],
		+id TEXT,
		+scope TEXT,
		+text TEXT,
		+source TEXT,
		+tags TEXT,
		+created_at INTEGER,
		+updated_at INTEGER,
		+embedding_provider TEXT,
		+embedding_model TEXT,
		+embedding_dim INTEGER
	)`, s.table, s.space.Dimension)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *FileVectorStore) insertPlaceholder(ctx context.Context) error {
	placeholder := make([]float32, s.space.Dimension)
	blob, err := sqlite_vec.SerializeFloat32(placeholder)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO "%s" (embedding, id, scope, text, source, tags, created_at, updated_at, embedding_provider, embedding_model, embedding_dim)
		VALUES (?, ?, ?, '', '', '[]', 0, 0, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q, blob, placeholderID, string(ScopeProject), s.space.Provider, s.space.Model, s.space.Dimension)
	return err
}

// Upsert validates dimension/lineage for every entry before any write,
// then replaces rows by id: a chunked delete-by-id, then one INSERT per
// entry. These statements do not run inside a transaction.
func (s *FileVectorStore) Upsert(ctx context.Context, entries []MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if len(entries[i].Embedding) != s.space.Dimension {
			return wrap("upsert", fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(entries[i].Embedding), s.space.Dimension))
		}
		if entries[i].EmbeddingProvider == "" {
			entries[i].EmbeddingProvider = s.space.Provider
		} else if entries[i].EmbeddingProvider != s.space.Provider {
			return wrap("upsert", fmt.Errorf("%w: provider %q vs %q", ErrLineageMismatch, entries[i].EmbeddingProvider, s.space.Provider))
		}
		if entries[i].EmbeddingModel == "" {
			entries[i].EmbeddingModel = s.space.Model
		} else if entries[i].EmbeddingModel != s.space.Model {
			return wrap("upsert", fmt.Errorf("%w: model %q vs %q", ErrLineageMismatch, entries[i].EmbeddingModel, s.space.Model))
		}
		entries[i].EmbeddingDim = s.space.Dimension
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := s.chunkedDeleteByID(ctx, ids); err != nil {
		return wrap("upsert", err)
	}

	for _, e := range entries {
		if err := s.insertOne(ctx, e); err != nil {
			return wrap("upsert", err)
		}
	}
	return nil
}

func (s *FileVectorStore) insertOne(ctx context.Context, e MemoryEntry) error {
	blob, err := sqlite_vec.SerializeFloat32(e.Embedding)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO "%s" (embedding, id, scope, text, source, tags, created_at, updated_at, embedding_provider, embedding_model, embedding_dim)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q, blob, e.ID, string(e.Scope), e.Text, e.Source, string(tagsJSON), e.CreatedAt, e.UpdatedAt, e.EmbeddingProvider, e.EmbeddingModel, e.EmbeddingDim)
	return err
}

// chunkedDeleteByID deletes rows matching any of ids, in IN-list
// batches of at most deleteChunkSize, matching the teacher's
// placeholder-based IN-list construction but bounded per spec §4.3.
func (s *FileVectorStore) chunkedDeleteByID(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			placeholders[i] = "?"
			args[i] = id
		}
		q := fmt.Sprintf(`DELETE FROM "%s" WHERE id IN (%s)`, s.table, strings.Join(placeholders, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileVectorStore) deleteRow(ctx context.Context, id string) error {
	return s.chunkedDeleteByID(ctx, []string{id})
}

// Delete removes a single row by id.
func (s *FileVectorStore) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.deleteRow(ctx, id); err != nil {
		return wrap("delete", err)
	}
	s.audit.Log(AuditEntry{Action: AuditActionDelete, Table: s.table, TargetID: id})
	return nil
}

// DeleteByScope removes every row whose scope matches. String values
// used in the predicate are escaped by doubling single quotes (the
// only free-form value here is the enum scope, but the escaping rule
// is applied uniformly per spec §4.3).
func (s *FileVectorStore) DeleteByScope(ctx context.Context, scope Scope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	escaped := escapeSingleQuotes(string(scope))
	q := fmt.Sprintf(`DELETE FROM "%s" WHERE scope = '%s'`, s.table, escaped)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return wrap("delete_by_scope", err)
	}
	s.audit.Log(AuditEntry{Action: AuditActionDeleteScope, Table: s.table, Scope: string(scope)})
	return nil
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// VectorSearch returns the nearest entries to queryVec, each carrying
// its raw L2 distance and derived score (1/(1+distance), I5).
func (s *FileVectorStore) VectorSearch(ctx context.Context, queryVec []float32, opts SearchOptions) ([]SearchHit, error) {
	if opts.TopK <= 0 {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, nil
	default:
	}

	blob, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, wrap("vector_search", err)
	}

	q := fmt.Sprintf(`SELECT id, scope, text, source, tags, created_at, updated_at,
			embedding_provider, embedding_model, embedding_dim, distance
		FROM "%s"
		WHERE embedding MATCH ?`, s.table)
	args := []interface{}{blob}
	if opts.HasScope {
		q += fmt.Sprintf(" AND scope = '%s'", escapeSingleQuotes(string(opts.Scope)))
	}
	q += " ORDER BY distance LIMIT ?"
	args = append(args, opts.TopK)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap("vector_search", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var e MemoryEntry
		var scope, tagsJSON string
		var distance float64
		if err := rows.Scan(&e.ID, &scope, &e.Text, &e.Source, &tagsJSON, &e.CreatedAt, &e.UpdatedAt,
			&e.EmbeddingProvider, &e.EmbeddingModel, &e.EmbeddingDim, &distance); err != nil {
			return nil, wrap("vector_search", err)
		}
		e.Scope = Scope(scope)
		_ = json.Unmarshal([]byte(tagsJSON), &e.Tags)

		score := DistanceToScore(distance)
		if opts.HasMin && score < opts.MinScore {
			continue
		}
		hits = append(hits, SearchHit{Entry: e, Distance: distance, Score: score})
	}
	return hits, rows.Err()
}

// GetByID returns a single row, unranked.
func (s *FileVectorStore) GetByID(ctx context.Context, id string) (MemoryEntry, bool, error) {
	q := fmt.Sprintf(`SELECT id, scope, text, source, tags, created_at, updated_at,
			embedding_provider, embedding_model, embedding_dim, embedding
		FROM "%s" WHERE id = ?`, s.table)
	row := s.db.QueryRowContext(ctx, q, id)

	var e MemoryEntry
	var scope, tagsJSON string
	var blob []byte
	if err := row.Scan(&e.ID, &scope, &e.Text, &e.Source, &tagsJSON, &e.CreatedAt, &e.UpdatedAt,
		&e.EmbeddingProvider, &e.EmbeddingModel, &e.EmbeddingDim, &blob); err != nil {
		if err == sql.ErrNoRows {
			return MemoryEntry{}, false, nil
		}
		return MemoryEntry{}, false, wrap("get_by_id", err)
	}
	e.Scope = Scope(scope)
	_ = json.Unmarshal([]byte(tagsJSON), &e.Tags)
	vec, err := deserializeFloat32(blob)
	if err != nil {
		return MemoryEntry{}, false, wrap("get_by_id", err)
	}
	e.Embedding = vec
	return e, true, nil
}

// ListByScope returns every row matching scope, unranked. Per an open
// design question in the source spec this is intentionally unbounded;
// callers are expected to keep curated sets small.
func (s *FileVectorStore) ListByScope(ctx context.Context, scope Scope) ([]MemoryEntry, error) {
	escaped := escapeSingleQuotes(string(scope))
	q := fmt.Sprintf(`SELECT id, scope, text, source, tags, created_at, updated_at,
			embedding_provider, embedding_model, embedding_dim
		FROM "%s" WHERE scope = '%s'`, s.table, escaped)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, wrap("list_by_scope", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var sc, tagsJSON string
		if err := rows.Scan(&e.ID, &sc, &e.Text, &e.Source, &tagsJSON, &e.CreatedAt, &e.UpdatedAt,
			&e.EmbeddingProvider, &e.EmbeddingModel, &e.EmbeddingDim); err != nil {
			return nil, wrap("list_by_scope", err)
		}
		e.Scope = Scope(sc)
		_ = json.Unmarshal([]byte(tagsJSON), &e.Tags)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEmbeddingSpaces enumerates every memory_entries__* virtual table
// present in the database file by querying sqlite_master; the shadow
// tables vec0 creates beside each one are skipped.
func (s *FileVectorStore) ListEmbeddingSpaces(ctx context.Context) ([]EmbeddingSpace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name LIKE 'memory_entries\_\_%' ESCAPE '\' AND sql LIKE 'CREATE VIRTUAL TABLE%'`)
	if err != nil {
		return nil, wrap("list_embedding_spaces", err)
	}
	defer rows.Close()

	var spaces []EmbeddingSpace
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap("list_embedding_spaces", err)
		}
		if sp, ok := parseTableName(name); ok {
			spaces = append(spaces, sp)
		}
	}
	return spaces, rows.Err()
}

// parseTableName recovers a best-effort EmbeddingSpace from a sanitized
// table name. Provider/model fragments are already lowercased by
// sanitizeIdent, so this is diagnostic only, never round-tripped into
// an authoritative space for writes.
func parseTableName(name string) (EmbeddingSpace, bool) {
	const prefix = "memory_entries__"
	if !strings.HasPrefix(name, prefix) {
		return EmbeddingSpace{}, false
	}
	parts := strings.Split(strings.TrimPrefix(name, prefix), "__")
	if len(parts) != 5 {
		return EmbeddingSpace{}, false
	}
	var dim int
	fmt.Sscanf(parts[2], "%d", &dim)
	return EmbeddingSpace{
		Provider:  parts[0],
		Model:     parts[1],
		Dimension: dim,
		Norm:      Norm(parts[3]),
		Version:   parts[4],
	}, true
}

// Close releases the database handle. Idempotent.
func (s *FileVectorStore) Close() error {
	return s.db.Close()
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ VectorStore = (*FileVectorStore)(nil)
