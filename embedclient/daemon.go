package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DaemonClient talks to a local Ollama-compatible daemon's /api/embed
// endpoint. Grounded on the request/response wire shape used throughout
// the corpus's Ollama integrations (POST {model, prompt|input}, read
// back a float embedding).
type DaemonClient struct {
	baseURL   string
	model     string
	dimension int
	batchSize int
	timeout   time.Duration
	http      *http.Client
}

// DaemonConfig configures a DaemonClient.
type DaemonConfig struct {
	BaseURL   string // e.g. http://localhost:11434
	Model     string
	Dimension int
	BatchSize int           // default 32
	Timeout   time.Duration // default 30s
}

// NewDaemonClient constructs a DaemonClient against a running daemon.
// Reachability is not checked here; see ProbeDaemon for the factory's
// discovery step.
func NewDaemonClient(cfg DaemonConfig) (*DaemonClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("daemon base url required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("daemon model required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DaemonClient{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
		timeout:   timeout,
		http:      &http.Client{},
	}, nil
}

type daemonEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type daemonEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements Client.
func (c *DaemonClient) Embed(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}
	if cancelled(ctx) {
		return nil
	}

	var out [][]float32
	for _, batch := range chunk(texts, c.batchSize) {
		vectors, err := c.embedBatch(ctx, batch)
		if err != nil {
			if cancelled(ctx) {
				return nil
			}
			logDegradation("DaemonClient", "embed", err)
			out = append(out, zeroVectors(len(batch), c.dimension)...)
			continue
		}
		out = append(out, vectors...)
	}
	return out
}

// EmbedOne implements Client.
func (c *DaemonClient) EmbedOne(ctx context.Context, text string) []float32 {
	vectors := c.Embed(ctx, []string{text})
	if len(vectors) == 0 {
		return make([]float32, c.dimension)
	}
	return vectors[0]
}

func (c *DaemonClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(daemonEmbedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, string(data))
	}

	var out daemonEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("daemon returned %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	for i, v := range out.Embeddings {
		if len(v) != c.dimension {
			return nil, fmt.Errorf("daemon returned a %d-dim embedding at index %d, expected %d", len(v), i, c.dimension)
		}
	}
	return out.Embeddings, nil
}

// Dimension implements Client.
func (c *DaemonClient) Dimension() int { return c.dimension }

// Model implements Client.
func (c *DaemonClient) Model() string { return c.model }

// ProbeDaemon implements the factory's local-daemon discovery step:
// GET {baseURL}/api/tags with a 3s timeout. Returns true only on 2xx.
func ProbeDaemon(ctx context.Context, baseURL string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

var _ Client = (*DaemonClient)(nil)
