package apiclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/pkg/errors"
)

func newTestClient() *Client {
	return NewClient(Options{Timeout: 2 * time.Second}, zap.NewNop())
}

func TestGetJSONSendsQueryAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("city"); got != "北京" {
			t.Errorf("expected city query, got %q", got)
		}
		_, _ = w.Write([]byte(`{"value": 42}`))
	}))
	defer server.Close()

	var resp struct {
		Value int `json:"value"`
	}
	err := newTestClient().GetJSON(context.Background(), server.URL, url.Values{"city": {"北京"}}, &resp)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Value != 42 {
		t.Fatalf("expected 42, got %d", resp.Value)
	}
}

func TestPostJSONSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["token"] != "abc" {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestClient().PostJSON(context.Background(), server.URL, nil, map[string]string{"token": "abc"}, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestNonSuccessStatusReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	err := newTestClient().GetJSON(context.Background(), server.URL, url.Values{"secret": {"s3cr3t"}}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}

	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", apiErr.StatusCode)
	}
	if apiErr.Context["url"] != server.URL {
		t.Fatalf("expected bare url in context, got %v", apiErr.Context["url"])
	}
}

func TestUndecodableBodyReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var resp map[string]any
	if err := newTestClient().GetJSON(context.Background(), server.URL, nil, &resp); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCancelledContextFailsFast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Options{Timeout: time.Second, RateLimitRPS: 1, RateLimitBurst: 1}, zap.NewNop())
	if err := client.GetJSON(ctx, "http://127.0.0.1:1", nil, nil); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
