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

// HostedClient talks to an OpenAI-compatible hosted embeddings API:
// POST {baseURL}/v1/embeddings with bearer auth, response path
// data[].embedding. Same chunking/degradation rules as DaemonClient.
type HostedClient struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	batchSize int
	timeout   time.Duration
	http      *http.Client
}

// HostedConfig configures a HostedClient.
type HostedConfig struct {
	BaseURL   string // default https://api.openai.com
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// NewHostedClient constructs a HostedClient. A missing API key is a
// configuration error: hosted construction must fail fast, per the
// factory's "explicit override construction failure is fatal" rule.
func NewHostedClient(cfg HostedConfig) (*HostedClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("hosted provider requires an API key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("hosted model required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HostedClient{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
		timeout:   timeout,
		http:      &http.Client{},
	}, nil
}

type hostedEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type hostedEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Client.
func (c *HostedClient) Embed(ctx context.Context, texts []string) [][]float32 {
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
			logDegradation("HostedClient", "embed", err)
			out = append(out, zeroVectors(len(batch), c.dimension)...)
			continue
		}
		out = append(out, vectors...)
	}
	return out
}

// EmbedOne implements Client.
func (c *HostedClient) EmbedOne(ctx context.Context, text string) []float32 {
	vectors := c.Embed(ctx, []string{text})
	if len(vectors) == 0 {
		return make([]float32, c.dimension)
	}
	return vectors[0]
}

func (c *HostedClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(hostedEmbedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call hosted api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("hosted api returned status %d: %s", resp.StatusCode, string(data))
	}

	var out hostedEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("hosted api returned %d embeddings for %d inputs", len(out.Data), len(texts))
	}
	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("hosted api returned a %d-dim embedding at index %d, expected %d", len(d.Embedding), i, c.dimension)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Dimension implements Client.
func (c *HostedClient) Dimension() int { return c.dimension }

// Model implements Client.
func (c *HostedClient) Model() string { return c.model }

var _ Client = (*HostedClient)(nil)
