package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"replyscout/internal/model"
)

const maxBodyBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks JSON over HTTP to a platform bridge API.
type Client struct {
	baseURL  string
	apiKey   string
	platform string
	client   HTTPClient
}

// NewClient creates a Client for the given bridge base URL.
func NewClient(baseURL, apiKey, platform string, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		platform: platform,
		client:   client,
	}
}

var _ Source = (*Client)(nil)

type postPayload struct {
	ID           string    `json:"id"`
	AuthorUserID string    `json:"author_user_id"`
	URL          string    `json:"url"`
	Text         string    `json:"text"`
	Likes        int       `json:"likes"`
	Reposts      int       `json:"reposts"`
	Replies      int       `json:"replies"`
	CreatedAt    time.Time `json:"created_at"`
}

type authorPayload struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Followers   int    `json:"followers"`
}

type constraintsPayload struct {
	MaxLength int `json:"max_length"`
}

type publishRequest struct {
	ParentPostID string `json:"parent_post_id"`
	Text         string `json:"text"`
}

type publishPayload struct {
	PostID   string    `json:"post_id"`
	PostURL  string    `json:"post_url"`
	PostedAt time.Time `json:"posted_at"`
}

// FetchReplies returns replies to the account's own posts since the given time.
func (c *Client) FetchReplies(ctx context.Context, since time.Time, limit int) ([]model.Post, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(limit))

	var payload []postPayload
	if err := c.get(ctx, "/replies?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("fetch replies: %w", err)
	}
	return toPosts(payload), nil
}

// SearchPosts returns posts matching any of the keywords since the given time.
func (c *Client) SearchPosts(ctx context.Context, keywords []string, since time.Time, limit int) ([]model.Post, error) {
	q := url.Values{}
	q.Set("q", strings.Join(keywords, ","))
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(limit))

	var payload []postPayload
	if err := c.get(ctx, "/search?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return toPosts(payload), nil
}

// GetAuthor returns the current profile of a platform user.
func (c *Client) GetAuthor(ctx context.Context, platformUserID string) (model.Author, error) {
	var payload authorPayload
	if err := c.get(ctx, "/users/"+url.PathEscape(platformUserID), &payload); err != nil {
		return model.Author{}, fmt.Errorf("get author %s: %w", platformUserID, err)
	}
	return model.Author{
		Platform:       c.platform,
		PlatformUserID: payload.UserID,
		Username:       payload.Username,
		DisplayName:    payload.DisplayName,
		Followers:      payload.Followers,
	}, nil
}

// Constraints returns the platform's posting limits.
func (c *Client) Constraints(ctx context.Context) (model.Constraints, error) {
	var payload constraintsPayload
	if err := c.get(ctx, "/constraints", &payload); err != nil {
		return model.Constraints{}, fmt.Errorf("get constraints: %w", err)
	}
	return model.Constraints{MaxLength: payload.MaxLength}, nil
}

// Publish posts a reply under the given parent post.
func (c *Client) Publish(ctx context.Context, parentPostID, text string) (model.Receipt, error) {
	body, err := json.Marshal(publishRequest{ParentPostID: parentPostID, Text: text})
	if err != nil {
		return model.Receipt{}, fmt.Errorf("marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return model.Receipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload publishPayload
	if err := c.do(req, &payload); err != nil {
		return model.Receipt{}, fmt.Errorf("publish post: %w", err)
	}
	return model.Receipt{
		PostID:   payload.PostID,
		PostURL:  payload.PostURL,
		PostedAt: payload.PostedAt,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http %s: %w", strings.ToLower(req.Method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// checkStatus maps non-2xx responses to the typed error taxonomy so callers
// can distinguish throttling, auth failure and missing resources.
func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &model.RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.AuthError{Platform: c.platform}
	case resp.StatusCode == http.StatusNotFound:
		return &model.NotFoundError{Kind: "resource", ID: resp.Request.URL.Path}
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func toPosts(payload []postPayload) []model.Post {
	posts := make([]model.Post, 0, len(payload))
	for _, p := range payload {
		posts = append(posts, model.Post{
			ID:           p.ID,
			AuthorUserID: p.AuthorUserID,
			URL:          p.URL,
			Text:         p.Text,
			Likes:        p.Likes,
			Reposts:      p.Reposts,
			Replies:      p.Replies,
			CreatedAt:    p.CreatedAt,
		})
	}
	return posts
}
