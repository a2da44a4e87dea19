package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark-c-hall/posterpalette/internal/config"
)

func newTestServerClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(config.VisionConfig{
		APIURL:  server.URL,
		APIKey:  "server-key",
		Timeout: 5 * time.Second,
	}, nil)
	return client, server
}

func TestForward_VerbatimBodyAndCredential(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer server-key" {
			t.Errorf("expected server credential, got %q", got)
		}
		got, _ := io.ReadAll(r.Body)
		if string(got) != string(body) {
			t.Errorf("body not forwarded verbatim: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`)
	})
	client, server := newTestServerClient(handler)
	defer server.Close()

	resp, err := client.Forward(context.Background(), body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK() {
		t.Errorf("expected OK response, got %d", resp.StatusCode)
	}
	if resp.ContentType != "application/json" {
		t.Errorf("unexpected content type %q", resp.ContentType)
	}
}

func TestForward_UpstreamErrorIsNotTransportError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad schema","type":"invalid_request_error"}}`)
	})
	client, server := newTestServerClient(handler)
	defer server.Close()

	resp, err := client.Forward(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 passthrough, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"error":{"message":"bad schema","type":"invalid_request_error"}}` {
		t.Errorf("unexpected body %s", resp.Body)
	}
}

func TestForward_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(config.VisionConfig{APIURL: url, Timeout: time.Second}, nil)
	if _, err := client.Forward(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("expected transport error, got nil")
	}
}

func TestFirstContent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"ok", `{"choices":[{"message":{"content":"{\"a\":1}"}}]}`, `{"a":1}`, false},
		{"no choices", `{"choices":[]}`, "", true},
		{"refusal", `{"choices":[{"message":{"content":"","refusal":"no"}}]}`, "", true},
		{"not json", `<html>`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstContent([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
