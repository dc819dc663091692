package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	client := NewLLMClient(LLMClientConfig{BaseURL: "https://llm.test/v1", APIKey: "key", Model: "gpt-4o", SystemMessage: "be helpful", Timeout: time.Second})
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		var payload chatRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "gpt-4o" || len(payload.Messages) != 2 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if payload.Messages[0].Role != "system" || payload.Messages[1].Content != "What is Go?" {
			t.Fatalf("unexpected messages: %+v", payload.Messages)
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"Go is a language."}}]}`), nil
	}))

	text, err := client.Complete(context.Background(), "What is Go?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Go is a language." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewLLMClient(LLMClientConfig{BaseURL: "https://llm.test/v1"})
	if _, err := client.Complete(context.Background(), "hi"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	hits := 0
	client := NewLLMClient(LLMClientConfig{BaseURL: "https://llm.test/v1", APIKey: "key", MaxRetries: 2})
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		if hits == 1 {
			return jsonResponse(http.StatusServiceUnavailable, "overloaded"), nil
		}
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`), nil
	}))

	text, err := client.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 2 || text != "ok" {
		t.Fatalf("expected retry then success, hits=%d text=%q", hits, text)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	hits := 0
	client := NewLLMClient(LLMClientConfig{BaseURL: "https://llm.test/v1", APIKey: "key", MaxRetries: 3})
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		return jsonResponse(http.StatusUnauthorized, `{"error":"invalid key"}`), nil
	}))

	_, err := client.Complete(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single attempt, got %d", hits)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	client := NewLLMClient(LLMClientConfig{BaseURL: "https://llm.test/v1", APIKey: "key"})
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"choices":[]}`), nil
	}))
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
