// Package ollama talks to a local Ollama server for chat generation and
// model inventory.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ekisa-team/polyglot/internal/backend"
)

const DefaultBaseURL = "http://127.0.0.1:11434"

// Client is a minimal Ollama HTTP client.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient constructs an Ollama client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat executes a non-streaming chat completion and returns the reply text.
func (c *Client) Chat(ctx context.Context, model string, messages []backend.Message, options map[string]any) (string, error) {
	if model == "" {
		return "", fmt.Errorf("model is required")
	}

	body := chatRequest{
		Model:    model,
		Messages: toMessages(messages),
		Stream:   false,
		Options:  options,
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &resp); err != nil {
		return "", err
	}

	return resp.Message.Content, nil
}

// Tags lists the models installed on the server.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	var resp tagsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}

	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("ollama: status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message message `json:"message"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func toMessages(msgs []backend.Message) []message {
	out := make([]message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
