// Package apiclient talks to the plan-build status endpoint of the mentorlounge API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mentorlounge/shared/message"
)

var ErrNotFound = errors.New("plan build not found")

// Client is an API client for plan-build sessions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithToken returns a new client with the specified auth token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		token:      token,
	}
}

// FetchPlanBuild returns the remote status of one build session.
func (c *Client) FetchPlanBuild(ctx context.Context, sessionID string) (*message.PlanBuildStatusResponse, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	var resp message.PlanBuildStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/plan-builds/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartPlanBuild asks the backend to generate a learning plan.
func (c *Client) StartPlanBuild(ctx context.Context, req message.StartPlanBuildRequest) (*message.StartPlanBuildResponse, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, errors.New("topic is required")
	}
	var resp message.StartPlanBuildResponse
	if err := c.do(ctx, http.MethodPost, "/api/plan-builds", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks the API health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
