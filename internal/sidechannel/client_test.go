package sidechannel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribe(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody subscribeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "session-token")
	if err := client.Subscribe(context.Background(), "conn-1", "widgets/weather"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if gotPath != "/sync/subscribe" {
		t.Errorf("path = %q, want /sync/subscribe", gotPath)
	}
	if gotAuth != "Bearer session-token" {
		t.Errorf("auth = %q, want bearer token", gotAuth)
	}
	if gotBody.ConnectionID != "conn-1" || gotBody.Topic != "widgets/weather" {
		t.Errorf("body = %+v, want conn-1/widgets/weather", gotBody)
	}
}

func TestUnsubscribe(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if err := client.Unsubscribe(context.Background(), "conn-1", "widgets/weather"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if gotPath != "/sync/unsubscribe" {
		t.Errorf("path = %q, want /sync/unsubscribe", gotPath)
	}
}

func TestLinkPushEndpoint(t *testing.T) {
	var gotBody pushEndpointRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sync/push-endpoint" {
			t.Errorf("path = %q, want /sync/push-endpoint", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	err := client.LinkPushEndpoint(context.Background(), "conn-1", "dev-1", "https://push.example.com/ep")
	if err != nil {
		t.Fatalf("LinkPushEndpoint failed: %v", err)
	}
	if gotBody.DeviceID != "dev-1" || gotBody.PushEndpoint != "https://push.example.com/ep" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", WithRetries(3, time.Millisecond))
	if err := client.Subscribe(context.Background(), "conn-1", "t"); err != nil {
		t.Fatalf("Subscribe failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", WithRetries(3, time.Millisecond))
	err := client.Subscribe(context.Background(), "conn-1", "t")
	if err == nil {
		t.Fatal("expected error for 403 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retries on 4xx)", calls.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", WithRetries(2, time.Millisecond))
	err := client.Subscribe(context.Background(), "conn-1", "t")
	if err == nil {
		t.Fatal("expected error when retries exhausted")
	}
}
