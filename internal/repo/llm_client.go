package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when no provider credentials are configured.
var ErrMissingAPIKey = errors.New("API key not configured")

// LLMClientConfig holds connection parameters for an OpenAI-compatible provider.
type LLMClientConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	SystemMessage string
	Timeout       time.Duration
	MaxRetries    int
}

// LLMClient calls the chat completions endpoint of an OpenAI-compatible provider.
type LLMClient struct {
	baseURL       string
	apiKey        string
	model         string
	systemMessage string
	maxRetries    int
	httpClient    *http.Client
}

// NewLLMClient constructs a client for the configured provider.
func NewLLMClient(cfg LLMClientConfig) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &LLMClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		model:         cfg.Model,
		systemMessage: cfg.SystemMessage,
		maxRetries:    retries,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// statusError reports a non-2xx provider response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("provider returned status %d", e.code)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.code, e.body)
}

// Complete sends prompt with the configured system instruction and returns the generated text.
func (c *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm client not initialised")
	}
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("llm base URL not configured")
	}

	messages := make([]chatMessage, 0, 2)
	if c.systemMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	var response chatResponse
	err := c.withRetry(ctx, func() error {
		return c.postJSON(ctx, c.resolvePath("/chat/completions"), chatRequest{Model: c.model, Messages: messages}, &response)
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

func (c *LLMClient) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = fn()
		if lastErr == nil || !shouldRetry(lastErr) || attempt == c.maxRetries {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return lastErr
}

func (c *LLMClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *LLMClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	base := 250 * time.Millisecond
	return time.Duration(1<<attempt) * base
}

func shouldRetry(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
