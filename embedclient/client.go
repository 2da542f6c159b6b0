// Package embedclient implements the EmbeddingClient capability contract
// and the three concrete variants a ProviderFactory selects between:
// local ONNX inference, a local daemon (Ollama-compatible), and a hosted
// API (OpenAI-compatible).
package embedclient

import (
	"context"
	"log"
	"time"
)

// defaultBatchSize bounds a single wire-format request; larger batches
// are chunked and concatenated in order.
const defaultBatchSize = 32

// defaultTimeout is the per-request timeout merged with the caller's
// cancellation token at every HTTP boundary.
const defaultTimeout = 30 * time.Second

// Client is the capability set every EmbeddingClient variant satisfies.
// Callers never branch on concrete type; the ProviderFactory returns
// this interface.
type Client interface {
	// Embed maps texts to same-length, same-order D-dimensional vectors.
	// Empty input yields empty output. Cancellation at any point yields
	// an empty slice, never an error.
	Embed(ctx context.Context, texts []string) [][]float32

	// EmbedOne is the single-text convenience path.
	EmbedOne(ctx context.Context, text string) []float32

	// Dimension is stable for the client's lifetime.
	Dimension() int

	// Model is a stable identifier for the selected model.
	Model() string
}

// chunk splits texts into batches of at most size, preserving order.
func chunk(texts []string, size int) [][]string {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

// zeroVectors builds n zero vectors of the given dimension — the
// engine-wide degradation sentinel for any embedding failure.
func zeroVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
	}
	return out
}

// cancelled reports whether ctx has already been cancelled, used at
// every suspension point per the cooperative-cancellation contract.
func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// logDegradation is the single call site for the "failure logged,
// degrade to zero vectors" policy shared by every client variant.
func logDegradation(component, op string, err error) {
	log.Printf("[%s] %s failed, degrading to zero vectors: %v", component, op, err)
}

// withTimeout merges the caller's context with a fresh timer-backed
// one: whichever fires first (caller cancel or timeout) aborts the
// derived context, per spec §5.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
