package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domainai "github.com/bryanwahyu/feedback-ai/internal/domain/ai"
)

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL+"/v1", "gpt-4o-mini", 0)
	out, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected content %q", out)
	}
	if got["max_tokens"] != float64(defaultMaxTokens) {
		t.Fatalf("expected max_tokens %d, got %v", defaultMaxTokens, got["max_tokens"])
	}
}

func TestCompleteMapsRateLimitToQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL+"/v1", "gpt-4o-mini", 64)
	_, err := c.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, domainai.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestCompleteWithoutClient(t *testing.T) {
	var c *Client
	if _, err := c.Complete(context.Background(), "a", "b"); !errors.Is(err, domainai.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
