package transport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sendAndWait sends req to url and waits for the callback.
func sendAndWait(t *testing.T, req Request, url string) Response {
	t.Helper()

	done := make(chan Response, 1)
	req.Send(url, func(resp Response) { done <- resp })

	select {
	case resp := <-done:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not called within 5 seconds")
		return Response{}
	}
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{name: "ok", statusCode: http.StatusOK, body: "pong"},
		{name: "not found", statusCode: http.StatusNotFound, body: "missing"},
		{name: "server error", statusCode: http.StatusInternalServerError, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
					t.Errorf("expected User-Agent %q, got %q", DefaultUserAgent, ua)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, Config{})
			req, err := client.NewRequest()
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}

			resp := sendAndWait(t, req, server.URL)
			if resp.Err != nil {
				t.Fatalf("unexpected error: %v", resp.Err)
			}
			if resp.StatusCode != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, resp.StatusCode)
			}
			if string(resp.Body) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, string(resp.Body))
			}
		})
	}
}

func TestClient_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	client := newTestClient(t, Config{MaxBodySize: 10})
	req, _ := client.NewRequest()

	resp := sendAndWait(t, req, server.URL)
	if len(resp.Body) != 10 {
		t.Errorf("expected body truncated to 10 bytes, got %d", len(resp.Body))
	}
}

func TestClient_Abort(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, Config{})
	req, _ := client.NewRequest()

	done := make(chan Response, 1)
	req.Send(server.URL, func(resp Response) { done <- resp })

	time.Sleep(50 * time.Millisecond)
	req.Abort()
	req.Abort() // idempotent

	select {
	case resp := <-done:
		if !errors.Is(resp.Err, ErrAborted) {
			t.Errorf("expected ErrAborted, got %v", resp.Err)
		}
		if resp.StatusCode != 0 {
			t.Errorf("expected no status code, got %d", resp.StatusCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("aborted request did not complete")
	}
}

func TestClient_AbortBeforeSend(t *testing.T) {
	client := newTestClient(t, Config{})
	req, _ := client.NewRequest()
	req.Abort()

	resp := sendAndWait(t, req, "http://127.0.0.1:1")
	if !errors.Is(resp.Err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", resp.Err)
	}
}

func TestClient_SendTwice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := newTestClient(t, Config{})
	req, _ := client.NewRequest()

	_ = sendAndWait(t, req, server.URL)
	resp := sendAndWait(t, req, server.URL)
	if !errors.Is(resp.Err, ErrAlreadySent) {
		t.Errorf("expected ErrAlreadySent, got %v", resp.Err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, Config{Timeout: 50 * time.Millisecond})
	req, _ := client.NewRequest()

	resp := sendAndWait(t, req, server.URL)
	if resp.Err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(resp.Err.Error(), "timed out") {
		t.Errorf("expected timeout in error, got %v", resp.Err)
	}
}

func TestClient_InvalidURL(t *testing.T) {
	client := newTestClient(t, Config{})
	req, _ := client.NewRequest()

	resp := sendAndWait(t, req, "://bad")
	if resp.Err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestClient_NewRequestUnavailable(t *testing.T) {
	var client *Client
	if _, err := client.NewRequest(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	// Close on nil receiver should not panic
	client.Close()
}

func TestNew_NegativeTimeout(t *testing.T) {
	if _, err := New(Config{Timeout: -time.Second}); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Code: http.StatusServiceUnavailable}

	if !errors.Is(err, &StatusError{Code: http.StatusServiceUnavailable}) {
		t.Error("expected errors.Is to match same code")
	}
	if errors.Is(err, &StatusError{Code: http.StatusNotFound}) {
		t.Error("expected errors.Is not to match different code")
	}
	if !err.Temporary() {
		t.Error("expected 503 to be temporary")
	}
	if (&StatusError{Code: http.StatusNotFound}).Temporary() {
		t.Error("expected 404 not to be temporary")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected code in message, got %q", err.Error())
	}
}
