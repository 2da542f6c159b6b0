package agentmem

import (
	"context"
	"fmt"
	"strings"
)

// ToolContext is passed to the SearchTool handler, mirroring the outer
// agent runtime's tool-calling convention: a bag of call metadata plus
// the cancellation token for the call.
type ToolContext struct {
	CallID string
	Ctx    context.Context
}

// ToolParam describes one parameter of the search tool.
type ToolParam struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
}

// ToolResult is what a Tool handler returns: the full body the caller
// renders to the model, plus a short display label a host UI can show in
// place of the body ("Found N memories" / "No results" / "Search failed").
type ToolResult struct {
	Body    string
	Display string
}

// ToolHandlerFunc is the signature the outer agent runtime calls. It
// still returns an error alongside the result so callers can
// errors.Is-match a sentinel; Result is always populated, even on error,
// since the caller needs a renderable body/display pair either way.
type ToolHandlerFunc func(tc *ToolContext, args map[string]interface{}) (ToolResult, error)

// Tool is a callable tool with metadata and a handler, in the same
// shape the outer agent runtime's tool-calling framework already
// expects (Name/Description/Parameters/Handler/ToJSONSchema).
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParam
	Handler     ToolHandlerFunc
}

// ToJSONSchema exports this tool as a generic JSON Schema object.
func (t *Tool) ToJSONSchema() map[string]interface{} {
	properties := make(map[string]interface{})
	var required []string
	for _, p := range t.Parameters {
		prop := map[string]interface{}{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"parameters": map[string]interface{}{
			"type":       "object",
			"properties": properties,
		},
	}
	if len(required) > 0 {
		schema["parameters"].(map[string]interface{})["required"] = required
	}
	return schema
}

// NewSearchTool adapts a MemoryManager's search surface into an
// agent-callable Tool exposing {query, scope?, limit?}.
func NewSearchTool(m *MemoryManager) *Tool {
	return &Tool{
		Name:        "search_memory",
		Description: "Search stored project/global memory for entries relevant to a query.",
		Parameters: []ToolParam{
			{Name: "query", Type: "string", Required: true, Description: "The search query."},
			{Name: "scope", Type: "string", Description: "project or global.", Default: string(ScopeProject)},
			{Name: "limit", Type: "integer", Description: "Max results, 1-50.", Default: 8},
		},
		Handler: func(tc *ToolContext, args map[string]interface{}) (ToolResult, error) {
			query, _ := args["query"].(string)
			query = strings.TrimSpace(query)
			if query == "" {
				return errorResult(ErrEmptyQuery), ErrEmptyQuery
			}

			scope := ScopeProject
			if raw, ok := args["scope"]; ok {
				if s, ok := raw.(string); ok && s != "" {
					scope = Scope(s)
				}
			}
			if !scope.Valid() {
				err := fmt.Errorf("%w: %q", ErrUnknownScope, scope)
				return errorResult(err), err
			}

			limit := 8
			if raw, ok := args["limit"]; ok {
				if n, ok := toInt(raw); ok {
					limit = n
				}
			}
			if limit < 1 || limit > 50 {
				err := fmt.Errorf("%w: %d", ErrLimitOutOfRange, limit)
				return errorResult(err), err
			}

			ctx := context.Background()
			if tc != nil && tc.Ctx != nil {
				ctx = tc.Ctx
			}

			hits := m.Search(ctx, query, SearchOptions{Scope: scope, Limit: limit})
			return renderSearchResult(query, hits), nil
		},
	}
}

// renderSearchResult builds the success/empty result pair.
func renderSearchResult(query string, hits []MemoryHit) ToolResult {
	if len(hits) == 0 {
		return ToolResult{
			Body:    fmt.Sprintf("No relevant memory found for query: %q", query),
			Display: "No results",
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant memories:\n\n", len(hits))
	for _, h := range hits {
		b.WriteString(fmt.Sprintf("• [%.2f] %s", h.Score, h.Text))
		if h.Source != "" {
			b.WriteString(fmt.Sprintf(" (source: %s)", h.Source))
		}
		b.WriteString("\n")
	}
	return ToolResult{
		Body:    strings.TrimRight(b.String(), "\n"),
		Display: fmt.Sprintf("Found %d memories", len(hits)),
	}
}

// errorResult builds the error-path result pair: the error's own message
// as the body, "Search failed" as the display label.
func errorResult(err error) ToolResult {
	return ToolResult{Body: err.Error(), Display: "Search failed"}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
