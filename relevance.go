package agentmem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
)

// LLMCallFunc is the caller-supplied, stateless LLM callback used by
// RelevanceFilter. It must respect ctx cancellation.
type LLMCallFunc func(ctx context.Context, prompt string) (string, error)

// FilterOptions configures a single RelevanceFilter.Filter call.
type FilterOptions struct {
	MaxSelect     int // default 10
	FallbackCount int // default 8
}

func (o FilterOptions) withDefaults() FilterOptions {
	if o.MaxSelect <= 0 {
		o.MaxSelect = 10
	}
	if o.FallbackCount <= 0 {
		o.FallbackCount = 8
	}
	return o
}

// FilterResult is the output of a RelevanceFilter pass.
type FilterResult struct {
	SelectedIDs []string
	Reasoning   string
}

// RelevanceFilter reduces an over-retrieved candidate list to a small,
// context-appropriate set by asking an LLM to choose a subset, falling
// back to a top-N-by-score selection whenever the LLM call fails,
// times out, or returns something that cannot be tolerantly parsed.
type RelevanceFilter struct {
	Call LLMCallFunc
}

// NewRelevanceFilter constructs a filter around the given LLM callback.
// A nil callback means Filter always falls back to top-N by score.
func NewRelevanceFilter(call LLMCallFunc) *RelevanceFilter {
	return &RelevanceFilter{Call: call}
}

// Filter implements the contract in full, including all documented
// short-circuits.
func (f *RelevanceFilter) Filter(ctx context.Context, query string, candidates []ParsedCandidate, opts FilterOptions) FilterResult {
	opts = opts.withDefaults()

	if len(candidates) == 0 {
		return FilterResult{SelectedIDs: []string{}, Reasoning: "no candidates"}
	}
	if len(candidates) <= opts.MaxSelect {
		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			ids = append(ids, c.ID)
		}
		return FilterResult{SelectedIDs: ids, Reasoning: "all within limit"}
	}

	select {
	case <-ctx.Done():
		return fallbackTopN(candidates, opts.FallbackCount, "cancelled before filter")
	default:
	}

	if f.Call == nil {
		return fallbackTopN(candidates, opts.FallbackCount, "fallback to top scores")
	}

	prompt := buildFilterPrompt(query, candidates, opts.MaxSelect)
	response, err := f.Call(ctx, prompt)
	if err != nil {
		log.Printf("[RelevanceFilter] LLM call failed: %v", err)
		return fallbackTopN(candidates, opts.FallbackCount, "fallback to top scores")
	}

	select {
	case <-ctx.Done():
		return fallbackTopN(candidates, opts.FallbackCount, "cancelled after filter")
	default:
	}

	selection, ok := parseSelectionResponse(response)
	if !ok {
		return fallbackTopN(candidates, opts.FallbackCount, "fallback to top scores")
	}

	valid := intersectIDs(selection.Selected, candidates)
	dropped := len(selection.Selected) - len(valid)
	if dropped > 0 {
		log.Printf("[RelevanceFilter] dropped %d unknown id(s) from LLM selection", dropped)
	}
	return FilterResult{SelectedIDs: valid, Reasoning: selection.Notes}
}

func buildFilterPrompt(query string, candidates []ParsedCandidate, maxSelect int) string {
	var b strings.Builder
	b.WriteString("You are a memory relevance filter. Select only the candidates truly relevant to the query below.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString("Candidates:\n")
	for _, c := range candidates {
		source := c.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "- ID: %s | Score: %.2f | Source: %s\n  Snippet: %s\n", c.ID, c.Score, source, truncateSnippet(c.Snippet, 200))
	}
	fmt.Fprintf(&b, "\nSelect between 0 and %d of the most relevant ids. If nothing is relevant, select none.\n", maxSelect)
	b.WriteString(`Respond with JSON only: {"selected":["id1","id2"], "notes":"short reasoning"}`)
	return b.String()
}

func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

type selectionResponse struct {
	Selected []string `json:"selected"`
	Notes    string    `json:"notes"`
}

// parseSelectionResponse tolerantly parses an LLM response into a
// selectionResponse: strips optional ``` / ```json fences, then
// json.Unmarshal; if that fails, it retries on the text between the
// first '{' and the last '}'. A response without a "selected" array
// does not parse.
func parseSelectionResponse(text string) (selectionResponse, bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		var cleaned []string
		for _, l := range lines {
			if !strings.HasPrefix(strings.TrimSpace(l), "```") {
				cleaned = append(cleaned, l)
			}
		}
		text = strings.TrimSpace(strings.Join(cleaned, "\n"))
	}

	var resp selectionResponse
	if err := json.Unmarshal([]byte(text), &resp); err == nil && resp.Selected != nil {
		return resp, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err == nil && resp.Selected != nil {
			return resp, true
		}
	}

	return selectionResponse{}, false
}

func intersectIDs(selected []string, candidates []ParsedCandidate) []string {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	out := make([]string, 0, len(selected))
	for _, id := range selected {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}

func fallbackTopN(candidates []ParsedCandidate, n int, reasoning string) FilterResult {
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
	return FilterResult{SelectedIDs: ids, Reasoning: reasoning}
}
