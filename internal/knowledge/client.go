package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBodyBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries a document-index service over HTTP.
type Client struct {
	baseURL string
	client  HTTPClient
}

// NewClient creates a Client for the given index base URL.
func NewClient(baseURL string, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

var _ Searcher = (*Client)(nil)

type searchRequest struct {
	Keywords []string `json:"keywords"`
}

type chunkPayload struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// Search returns ranked snippets for the given keywords. An empty result is
// success, not an error.
func (c *Client) Search(ctx context.Context, keywords []string) ([]Chunk, error) {
	body, err := json.Marshal(searchRequest{Keywords: keywords})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var payload []chunkPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	chunks := make([]Chunk, 0, len(payload))
	for _, p := range payload {
		chunks = append(chunks, Chunk{DocumentID: p.DocumentID, Text: p.Text})
	}
	return chunks, nil
}
