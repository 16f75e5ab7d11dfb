package ratingsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// Code returns the API error code carried by err, or "".
func Code(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Client talks to the rating service API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, "", nil)
}

// Session reads the dashboard.
func (c *Client) Session(ctx context.Context) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, "", &s)
	return s, err
}

// Connect requests wallet access.
func (c *Client) Connect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/wallet/connect", struct{}{}, "", nil)
}

// SwitchChain asks the wallet to move to chainID.
func (c *Client) SwitchChain(ctx context.Context, chainID uint64) error {
	body := map[string]uint64{"chain_id": chainID}
	return c.do(ctx, http.MethodPost, "/api/v1/wallet/chain", body, "", nil)
}

// CreateProject creates a project and waits for the outcome.
func (c *Client) CreateProject(ctx context.Context, p NewProject, key string) (Outcome, error) {
	var out Outcome
	err := c.do(ctx, http.MethodPost, "/api/v1/projects", p, key, &out)
	return out, err
}

// SubmitRating rates a project. A replayed key yields a duplicate Ack instead of an Outcome.
func (c *Client) SubmitRating(ctx context.Context, projectID uint64, scores map[string]int64, key string) (Outcome, Ack, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/api/v1/projects/%d/ratings", projectID)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"scores": scores}, key, &raw); err != nil {
		return Outcome{}, Ack{}, err
	}
	var ack Ack
	if err := json.Unmarshal(raw, &ack); err == nil && ack.Duplicate {
		return Outcome{}, ack, nil
	}
	var out Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return Outcome{}, Ack{}, fmt.Errorf("decode outcome: %w", err)
	}
	return out, Ack{}, nil
}

// Refresh reloads the project list.
func (c *Client) Refresh(ctx context.Context) (Outcome, error) {
	var out Outcome
	err := c.do(ctx, http.MethodPost, "/api/v1/projects/refresh", struct{}{}, "", &out)
	return out, err
}

// Statistics reads a project's statistics view.
func (c *Client) Statistics(ctx context.Context, projectID uint64) (Statistics, error) {
	var s Statistics
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/statistics", projectID), nil, "", &s)
	return s, err
}

// UserRating reads the scores address gave projectID.
func (c *Client) UserRating(ctx context.Context, projectID uint64, address string) (UserRating, error) {
	var u UserRating
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/ratings/%s", projectID, address), nil, "", &u)
	return u, err
}

// Raters lists a project's raters.
func (c *Client) Raters(ctx context.Context, projectID uint64) (Raters, error) {
	var r Raters
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/raters", projectID), nil, "", &r)
	return r, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, key string, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
