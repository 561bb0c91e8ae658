package brain

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

// Client implements Engine against any OpenAI-compatible chat-completions
// endpoint (OpenAI, OpenRouter, Ollama). It performs no retries.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  HTTPClient
}

// NewClient creates a Client. baseURL defaults to the OpenAI API when empty.
func NewClient(baseURL, apiKey, model string, client HTTPClient) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
	}
}

var _ Engine = (*Client)(nil)

// Model identifies the configured model.
func (c *Client) Model() string {
	return c.model
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type analysisPayload struct {
	Keywords  []string `json:"keywords"`
	MainTopic string   `json:"main_topic"`
	Domain    string   `json:"domain"`
	Question  string   `json:"question"`
}

// Analyze extracts structured analysis from a prompt. The model is asked for
// a JSON object; markdown code fences around it are tolerated.
func (c *Client) Analyze(ctx context.Context, prompt string) (Analysis, error) {
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return Analysis{}, err
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	return Analysis{
		Keywords:  payload.Keywords,
		MainTopic: payload.MainTopic,
		Domain:    payload.Domain,
		Question:  payload.Question,
	}, nil
}

// Generate returns trimmed free text for a prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return decoded.Choices[0].Message.Content, nil
}

// stripFences removes a surrounding markdown code fence, which some models
// emit even when asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
