package client

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
)

// APIKeyHeader carries the credential on every request.
const APIKeyHeader = "X-API-KEY"

// Client provides typed access to the panem API for interactive tools.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAPIKey sets the credential sent in X-API-KEY.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://panem"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// EnvVar is one environment entry.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Project reflects API project payloads.
type Project struct {
	Name        string   `json:"name"`
	Environment []EnvVar `json:"environment"`
}

// WebhookResult is the downstream answer relayed by an action.
type WebhookResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// ActionResult is the response of start, stop and restart.
type ActionResult struct {
	Callback *string       `json:"callback"`
	Webhook  WebhookResult `json:"webhook"`
}

// ListProjects fetches every project.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects/", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, name string) (Project, error) {
	var project Project
	err := c.do(ctx, http.MethodGet, projectPath(name), nil, &project)
	return project, err
}

// CreateProject creates a project. callback may be empty.
func (c *Client) CreateProject(ctx context.Context, name string, env []EnvVar, callback string) (Project, error) {
	if env == nil {
		env = []EnvVar{}
	}
	payload := map[string]any{"name": name, "environment": env}
	if callback != "" {
		payload["callback"] = callback
	}
	var project Project
	err := c.do(ctx, http.MethodPost, "/projects/", payload, &project)
	return project, err
}

// UpdateProject replaces a project's environment.
func (c *Client) UpdateProject(ctx context.Context, name string, env []EnvVar, callback string) (Project, error) {
	if env == nil {
		env = []EnvVar{}
	}
	payload := map[string]any{"environment": env}
	if callback != "" {
		payload["callback"] = callback
	}
	var project Project
	err := c.do(ctx, http.MethodPut, projectPath(name), payload, &project)
	return project, err
}

// Action triggers start, stop or restart.
func (c *Client) Action(ctx context.Context, name, action, callback string) (ActionResult, error) {
	payload := map[string]any{}
	if callback != "" {
		payload["callback"] = callback
	}
	var result ActionResult
	err := c.do(ctx, http.MethodPost, projectPath(name)+"_"+url.PathEscape(action), payload, &result)
	return result, err
}

func projectPath(name string) string {
	return "/projects/" + url.PathEscape(name) + "/"
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}
