// Package ai handles communication with the content generation service:
// submitting prompts, streaming generated text and reading conversation
// history.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/arin/scribe-cli/internal/config"
	"github.com/rs/zerolog"
)

const (
	chatPath          = "/api/content/chat"
	conversationsPath = "/api/content/conversations"
	healthPath        = "/health"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 * 1024
)

// Client communicates with the generation service.
type Client struct {
	baseURL string
	// httpClient carries the request timeout; streamClient has none and
	// relies on the caller's context, since a stream may legitimately run
	// longer than any single request.
	httpClient   *http.Client
	streamClient *http.Client
	logger       zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces both the unary and the streaming HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = hc
	}
}

// WithBaseURL overrides the configured service URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		streamClient: &http.Client{},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and returns the response only when its status is 2xx.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serverErr := newServerError(resp.StatusCode, respBody)
		c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Str("reason", serverErr.Message).Msg("request failed")
		return nil, serverErr
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, c.httpClient, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Generate submits a prompt in non-streaming mode and returns the full answer.
func (c *Client) Generate(ctx context.Context, prompt, conversationID string) (string, error) {
	ch, err := c.Stream(ctx, GenerationRequest{Prompt: prompt, ConversationID: conversationID})
	if err != nil {
		return "", err
	}
	return Collect(ch)
}

// ListConversations fetches conversation summaries in server order.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out conversationList
	if err := c.getJSON(ctx, conversationsPath, &out); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out.Conversations, nil
}

// ConversationMessages fetches the stored messages of one conversation.
// An unknown id yields an error matching ErrNotFound.
func (c *Client) ConversationMessages(ctx context.Context, id string) ([]MessageRecord, error) {
	var out messageList
	path := conversationsPath + "/" + url.PathEscape(id) + "/messages"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	return out.Messages, nil
}

// Health queries the service health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.getJSON(ctx, healthPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
