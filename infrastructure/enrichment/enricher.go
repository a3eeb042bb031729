// Package enrichment implements the Enricher port against an external
// HTTP summarization/embedding service.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	pkgerrors "braindump/pkg/errors"
)

// Client calls a remote enrichment service. Both operations are
// best-effort for callers: the engine treats a failure as a node-level
// error state, never as a mutation failure.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(endpoint, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Summarize produces a short summary of the text
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	var response struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, "/summarize", map[string]string{"text": text}, &response); err != nil {
		return "", pkgerrors.NewEnrichmentError("summarize", err)
	}
	return response.Summary, nil
}

// Embed produces an embedding vector for the text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var response struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := c.post(ctx, "/embed", map[string]string{"text": text}, &response); err != nil {
		return nil, pkgerrors.NewEnrichmentError("embed", err)
	}
	return response.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("enrichment service returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
