package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/solentwx/weather-station/internal/weather"
)

// TestDoRequestWithResilienceRetries verifies a transient 500 is retried and
// the eventual success is returned.
func TestDoRequestWithResilienceRetries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:    srv.Client(),
		UserAgent: "XIAO-Weather-Parser/1.0",
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
	cb := newCircuit("retry-test")

	build := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}

	resp, err := doRequestWithResilience(context.Background(), cfg, cb, build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := readBody(resp, 0)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 1 failure + 1 success", hits)
	}
}

// TestDoRequestWithResilienceUserAgent verifies the configured agent is set
// on every request.
func TestDoRequestWithResilienceUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client:    srv.Client(),
		UserAgent: "XIAO-Weather-Parser/1.0",
		Backoff:   defaultBackoff(),
	}
	build := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}

	resp, err := doRequestWithResilience(context.Background(), cfg, newCircuit("ua-test"), build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if gotUA != "XIAO-Weather-Parser/1.0" {
		t.Fatalf("user agent = %q, want XIAO-Weather-Parser/1.0", gotUA)
	}
}

// TestDoRequestWithResilienceExhausted verifies retries stop at the cap.
func TestDoRequestWithResilienceExhausted(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "always down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := HTTPClientConfig{
		Client: srv.Client(),
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	}
	build := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}

	_, err := doRequestWithResilience(context.Background(), cfg, newCircuit("exhaust-test"), build)
	if !errors.Is(err, errServerError) {
		t.Fatalf("expected errServerError, got %v", err)
	}
	if hits != 3 {
		t.Fatalf("hits = %d, want initial attempt + 2 retries", hits)
	}
}

// TestDoRequestWithResilienceNoClient verifies the config guard.
func TestDoRequestWithResilienceNoClient(t *testing.T) {
	build := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	}
	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, newCircuit("nil-test"), build)
	if !errors.Is(err, errNoHTTPClient) {
		t.Fatalf("expected errNoHTTPClient, got %v", err)
	}
}

// TestReadBodyOverflow verifies oversized responses classify as buffer
// overflow rather than being truncated.
func TestReadBodyOverflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_, err = readBody(resp, 99)
	if !errors.Is(err, weather.ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if got := weather.Classify(err); got != weather.ParseBufferOverflow {
		t.Fatalf("Classify = %s, want buffer_overflow", got)
	}
}

// TestFetchTimeoutClassification verifies a slow upstream maps to the
// network-timeout status end to end.
func TestFetchTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("too late"))
	}))
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 20 * time.Millisecond
	cfg := HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      0,
			InitialInterval: time.Millisecond,
		},
	}
	build := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}

	_, err := doRequestWithResilience(context.Background(), cfg, newCircuit("timeout-test"), build)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if got := weather.Classify(err); got != weather.ParseNetworkTimeout {
		t.Fatalf("Classify = %s (%v), want network_timeout", got, err)
	}
}
