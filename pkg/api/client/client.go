package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the SupaConsole API for interactive tools.
type Client struct {
	baseURL    string
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

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
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

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	if e.Kind != "" {
		return fmt.Sprintf("api request failed (%d %s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType, token string) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		reader, contentType = bytes.NewReader(b), "application/json"
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader, contentType = bytes.NewReader(payload), "application/json"
	}
	resp, err := c.send(ctx, method, path, reader, contentType, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Error)
	apiErr.Kind = payload.Kind
	return apiErr
}

func projectPath(projectID, suffix string) string {
	return "/projects/" + url.PathEscape(projectID) + suffix
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session carries the bearer token issued at login.
type Session struct {
	Token     string        `json:"token"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// LoginResponse captures the session payload emitted by the API.
type LoginResponse struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup", map[string]string{"email": email, "password": password}, "", &resp)
	return resp, err
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "", &resp)
	return resp, err
}

// Project describes one local Supabase instance.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListProjects returns the caller's projects.
func (c *Client) ListProjects(ctx context.Context, token string) ([]Project, error) {
	var resp struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// CreateProject provisions a new project record.
func (c *Client) CreateProject(ctx context.Context, token, name, description string) (Project, error) {
	var project Project
	body := map[string]string{"name": name, "description": description}
	err := c.do(ctx, http.MethodPost, "/projects", body, token, &project)
	return project, err
}

// InitializeProject copies the compose files into the project workspace.
func (c *Client) InitializeProject(ctx context.Context, token, projectID string) (Project, error) {
	var project Project
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "/initialize"), nil, token, &project)
	return project, err
}

// DeleteProject removes a project and its workspace.
func (c *Client) DeleteProject(ctx context.Context, token, projectID string) error {
	return c.do(ctx, http.MethodDelete, projectPath(projectID, ""), nil, token, nil)
}

type envResponse struct {
	Env map[string]string `json:"env"`
}

// GetEnv returns the stored configuration of a project.
func (c *Client) GetEnv(ctx context.Context, token, projectID string) (map[string]string, error) {
	var resp envResponse
	if err := c.do(ctx, http.MethodGet, projectPath(projectID, "/env"), nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Env, nil
}

// DefaultEnv returns a derived configuration. A nil timestamp lets the
// server pick the current time.
func (c *Client) DefaultEnv(ctx context.Context, token, projectID string, timestamp *int64) (map[string]string, error) {
	path := projectPath(projectID, "/env/defaults")
	if timestamp != nil {
		path += fmt.Sprintf("?timestamp=%d", *timestamp)
	}
	var resp envResponse
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Env, nil
}

// UpdateEnv merges values into the stored configuration.
func (c *Client) UpdateEnv(ctx context.Context, token, projectID string, values map[string]string) (map[string]string, error) {
	var resp envResponse
	if err := c.do(ctx, http.MethodPost, projectPath(projectID, "/env"), values, token, &resp); err != nil {
		return nil, err
	}
	return resp.Env, nil
}

// RegenerateEnv replaces every secret and port with fresh values.
func (c *Client) RegenerateEnv(ctx context.Context, token, projectID string) (map[string]string, error) {
	var resp envResponse
	if err := c.do(ctx, http.MethodPost, projectPath(projectID, "/env/regenerate"), nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Env, nil
}

// EnvFile downloads the rendered .env of a project.
func (c *Client) EnvFile(ctx context.Context, token, projectID string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, projectPath(projectID, "/env/file"), nil, "", token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// KeyPair holds the anon and service role API keys.
type KeyPair struct {
	AnonKey    string `json:"anonKey"`
	ServiceKey string `json:"serviceKey"`
}

// GenerateKeys mints API keys for jwtSecret on the server.
func (c *Client) GenerateKeys(ctx context.Context, token, projectID, jwtSecret string) (KeyPair, error) {
	var keys KeyPair
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "/generate-keys"), map[string]string{"jwtSecret": jwtSecret}, token, &keys)
	return keys, err
}

// SystemReport mirrors the prerequisite check payload.
type SystemReport struct {
	Docker             bool              `json:"docker"`
	DockerCompose      bool              `json:"dockerCompose"`
	DockerRunning      bool              `json:"dockerRunning"`
	DockerVersion      string            `json:"dockerVersion,omitempty"`
	InternetConnection bool              `json:"internetConnection"`
	Errors             map[string]string `json:"errors,omitempty"`
}

// SystemCheck asks the server to probe its host prerequisites.
func (c *Client) SystemCheck(ctx context.Context, token string) (SystemReport, error) {
	var report SystemReport
	err := c.do(ctx, http.MethodGet, "/system/check", nil, token, &report)
	return report, err
}
