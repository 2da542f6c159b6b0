package agentmem

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lattice-mind/agentmem/embedclient"
	"github.com/lattice-mind/agentmem/store"
)

// managerState is the MemoryManager lifecycle (spec §4.6).
type managerState int32

const (
	stateConstructed managerState = iota
	stateInitializing
	stateReady
	stateClosed
)

// RetrieveRequest is the input to retrieve_relevant. Query is either a
// plain string or, for multi-part requests, the caller joins the parts
// before calling (the manager does not own message-part semantics).
type RetrieveRequest struct {
	Query string
}

// RetrieveOptions configures a retrieve_relevant call.
type RetrieveOptions struct {
	Scope Scope // default ScopeProject
	TopK  int   // default 50
}

// SearchOptions configures a search call (tool access, no LLM filter).
type SearchOptions struct {
	Scope Scope // default ScopeProject
	Limit int    // default 8
}

// MemoryManager orchestrates the full retrieval pipeline and surfaces
// the three public operations the outer agent sees. It never throws on
// the read path; every failure degrades to an empty result.
type MemoryManager struct {
	store    store.VectorStore
	embedder embedclient.Client
	filter   *RelevanceFilter

	mu        sync.RWMutex
	state     managerState
	initGroup singleflight.Group
}

// NewMemoryManager constructs a manager in the "constructed" state.
// Call Init before any retrieval call.
func NewMemoryManager(vs store.VectorStore, embedder embedclient.Client, llmCall LLMCallFunc) *MemoryManager {
	return &MemoryManager{
		store:    vs,
		embedder: embedder,
		filter:   NewRelevanceFilter(llmCall),
		state:    stateConstructed,
	}
}

// Init is idempotent and concurrency-safe via a single in-flight guard:
// the first caller performs store.Init, every concurrent caller awaits
// the same result. Failure leaves the manager degraded (never ready)
// rather than surfacing an error — per the "never block the
// conversation" contract, all retrieval calls after a failed Init
// simply keep returning empty.
func (m *MemoryManager) Init(ctx context.Context) error {
	m.mu.RLock()
	if m.state == stateReady {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	_, err, _ := m.initGroup.Do("init", func() (interface{}, error) {
		m.mu.Lock()
		if m.state == stateReady {
			m.mu.Unlock()
			return nil, nil
		}
		m.state = stateInitializing
		m.mu.Unlock()

		err := m.store.Init(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			log.Printf("[MemoryManager] init failed, manager stays degraded: %v", err)
			m.state = stateConstructed
			return nil, nil
		}
		m.state = stateReady
		return nil, nil
	})
	return err
}

func (m *MemoryManager) isReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateReady
}

// GetProjectCore is the Layer-1 static surface: every project-scope
// entry, unranked, rendered as a markdown bullet list. Returns "" on
// any failure or before Init.
func (m *MemoryManager) GetProjectCore(ctx context.Context) string {
	if !m.isReady() {
		return ""
	}
	select {
	case <-ctx.Done():
		return ""
	default:
	}

	entries, err := m.store.ListByScope(ctx, ScopeProject)
	if err != nil {
		log.Printf("[MemoryManager] get_project_core failed: %v", err)
		return ""
	}
	return FormatProjectCore(entries)
}

// RetrieveRelevant is the Layer-2 dynamic surface: embed the query once,
// over-retrieve by vector similarity, then run the candidates through
// RelevanceFilter (or top-8-by-score when no LLM call was configured),
// mapping surviving ids back to full hits.
func (m *MemoryManager) RetrieveRelevant(ctx context.Context, req RetrieveRequest, opts RetrieveOptions) []MemoryHit {
	if !m.isReady() {
		return []MemoryHit{}
	}
	scope := opts.Scope
	if scope == "" {
		scope = ScopeProject
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 50
	}

	select {
	case <-ctx.Done():
		return []MemoryHit{}
	default:
	}

	queryVec := m.embedder.EmbedOne(ctx, req.Query)

	select {
	case <-ctx.Done():
		return []MemoryHit{}
	default:
	}

	hits, err := m.store.VectorSearch(ctx, queryVec, store.SearchOptions{TopK: topK, Scope: scope, HasScope: true})
	if err != nil {
		log.Printf("[MemoryManager] vector_search failed: %v", err)
		return []MemoryHit{}
	}

	select {
	case <-ctx.Done():
		return []MemoryHit{}
	default:
	}

	candidates := make([]ParsedCandidate, len(hits))
	byID := make(map[string]store.SearchHit, len(hits))
	for i, h := range hits {
		candidates[i] = ParsedCandidate{ID: h.Entry.ID, Score: h.Score, Snippet: truncate(h.Entry.Text, 200), Source: h.Entry.Source}
		byID[h.Entry.ID] = h
	}

	var selectedIDs []string
	if m.filter.Call != nil {
		result := m.filter.Filter(ctx, req.Query, candidates, FilterOptions{})
		selectedIDs = result.SelectedIDs
	} else {
		selectedIDs = topNByScore(candidates, 8)
	}

	out := make([]MemoryHit, 0, len(selectedIDs))
	for _, id := range selectedIDs {
		if h, ok := byID[id]; ok {
			out = append(out, toMemoryHit(h))
		}
	}
	return out
}

// Search is the tool-access surface: top-limit by similarity, no LLM
// filter.
func (m *MemoryManager) Search(ctx context.Context, query string, opts SearchOptions) []MemoryHit {
	if !m.isReady() {
		return []MemoryHit{}
	}
	scope := opts.Scope
	if scope == "" {
		scope = ScopeProject
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 8
	}

	select {
	case <-ctx.Done():
		return []MemoryHit{}
	default:
	}

	queryVec := m.embedder.EmbedOne(ctx, query)

	select {
	case <-ctx.Done():
		return []MemoryHit{}
	default:
	}

	hits, err := m.store.VectorSearch(ctx, queryVec, store.SearchOptions{TopK: limit, Scope: scope, HasScope: true})
	if err != nil {
		log.Printf("[MemoryManager] search failed: %v", err)
		return []MemoryHit{}
	}

	out := make([]MemoryHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, toMemoryHit(h))
	}
	return out
}

// Close forwards to the store and transitions the manager to closed.
func (m *MemoryManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateClosed
	return m.store.Close()
}

func toMemoryHit(h store.SearchHit) MemoryHit {
	return MemoryHit{
		ID:            h.Entry.ID,
		Text:          h.Entry.Text,
		Score:         h.Score,
		Source:        h.Entry.Source,
		TokenEstimate: EstimateTokens(h.Entry.Text),
	}
}

func topNByScore(candidates []ParsedCandidate, n int) []string {
	sorted := make([]ParsedCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n > len(sorted) {
		n = len(sorted)
	}
	ids := make([]string, 0, n)
	for _, c := range sorted[:n] {
		ids = append(ids, c.ID)
	}
	return ids
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// nowMillis is the engine-wide wall-clock helper for CreatedAt/UpdatedAt
// stamping by curators; the manager itself never stamps timestamps.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
