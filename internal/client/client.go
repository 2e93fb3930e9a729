// Package client posts widget messages to the agent chat backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnexpectedStatus wraps every non-2xx reply.
var ErrUnexpectedStatus = errors.New("unexpected status")

const (
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"
)

// ChatRequest is the body every widget sends.
type ChatRequest struct {
	Message   string `json:"message"`
	ModelName string `json:"model_name"`
}

// ChatResponse is the backend reply. Only Message is rendered.
type ChatResponse struct {
	Message string `json:"message"`
	Agent   string `json:"agent,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	sessionID string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout bounds each request. It replaces the timeout of any client
// given through WithHTTPClient, so apply it last.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		copied := *cl.http
		copied.Timeout = d
		cl.http = &copied
	}
}

// WithSessionID tags every request so the backend can keep per-widget history.
func WithSessionID(id string) Option {
	return func(cl *Client) { cl.sessionID = id }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts req to path and decodes the reply. Any transport failure,
// non-2xx status or undecodable body is an error; there is no retry.
func (c *Client) Send(ctx context.Context, path string, req ChatRequest) (ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	if c.sessionID != "" {
		httpReq.Header.Set(HeaderSessionID, c.sessionID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return ChatResponse{}, fmt.Errorf("post %s: %w: server returned %d", path, ErrUnexpectedStatus, resp.StatusCode)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResponse{}, fmt.Errorf("decode response from %s: %w", path, err)
	}
	return out, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
