// Package client calls a running useragents server.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/useragents/core"
	"github.com/hupe1980/useragents/registry"
)

// StatusError reports a non-200 answer from the server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Options configures a Client.
type Options struct {
	// HTTPClient overrides the transport entirely; Timeout and
	// InsecureSkipVerify are ignored when it is set.
	HTTPClient         *http.Client
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client is a thin JSON client for the agent API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for baseURL, e.g. "https://localhost:443".
func New(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: 60 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for self-signed dev certs
		}
		httpClient = &http.Client{Timeout: opts.Timeout, Transport: transport}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Run posts req to the agent route. When the server answers with a non-200
// status the decoded response is returned alongside a *StatusError.
func (c *Client) Run(ctx context.Context, req core.AgentRequest) (core.AgentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return core.AgentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var out core.AgentResponse

	err = c.do(ctx, http.MethodPost, "/api/v1/agent", bytes.NewReader(body), &out)

	return out, err
}

// Agents lists the registered agents.
func (c *Client) Agents(ctx context.Context) ([]registry.Entry, error) {
	var out struct {
		Agents []registry.Entry `json:"agents"`
	}

	if err := c.do(ctx, http.MethodGet, "/api/v1/agents", nil, &out); err != nil {
		return nil, err
	}

	return out.Agents, nil
}

// Health returns nil when the server reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if out != nil && len(raw) > 0 {
		if decodeErr := json.Unmarshal(raw, out); decodeErr != nil && resp.StatusCode == http.StatusOK {
			return fmt.Errorf("decode response: %w", decodeErr)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return nil
}
