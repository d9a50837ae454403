package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-image-1.5"})
	return client, srv
}

func TestGenerateDecodesURLResult(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": "https://img.example.com/cat.png"}},
		})
	})

	img, err := client.Generate(context.Background(), GenerationRequest{
		Prompt:  "a cute cat",
		Size:    "1024x1024",
		Quality: "high",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.URL != "https://img.example.com/cat.png" {
		t.Fatalf("url = %q, want cat.png url", img.URL)
	}
	if gotPath != "/images/generations" {
		t.Fatalf("path = %q, want /images/generations", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotBody["quality"] != "high" || gotBody["model"] != "gpt-image-1.5" {
		t.Fatalf("unexpected payload: %#v", gotBody)
	}
}

func TestGenerateDecodesInlineResult(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": "aGVsbG8="}},
		})
	})

	img, err := client.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.B64JSON != "aGVsbG8=" {
		t.Fatalf("b64_json = %q", img.B64JSON)
	}
}

func TestEditSendsMultipartForm(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/edits" {
			t.Errorf("path = %q, want /images/edits", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("prompt"); got != "make it night" {
			t.Errorf("prompt = %q", got)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("image part: %v", err)
		} else {
			file.Close()
			if header.Filename != "source.png" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": "ZWRpdGVk"}},
		})
	})

	img, err := client.Edit(context.Background(), EditRequest{
		Prompt: "make it night",
		Size:   "1024x1024",
		Image:  []byte{0x89, 0x50, 0x4e, 0x47},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.B64JSON == "" {
		t.Fatalf("expected inline image data")
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       map[string]any
		wantPolicy bool
		wantRetry  bool
	}{
		{
			name:   "content policy rejection",
			status: http.StatusBadRequest,
			body: map[string]any{"error": map[string]string{
				"message": "Your request was rejected by our safety system.",
				"type":    "invalid_request_error",
				"code":    "content_policy_violation",
			}},
			wantPolicy: true,
			wantRetry:  false,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body: map[string]any{"error": map[string]string{
				"message": "Rate limit reached",
				"type":    "rate_limit_error",
			}},
			wantPolicy: false,
			wantRetry:  true,
		},
		{
			name:   "server fault",
			status: http.StatusInternalServerError,
			body: map[string]any{"error": map[string]string{
				"message": "The server had an error",
			}},
			wantPolicy: false,
			wantRetry:  true,
		},
		{
			name:   "plain bad request",
			status: http.StatusBadRequest,
			body: map[string]any{"error": map[string]string{
				"message": "Invalid size parameter",
			}},
			wantPolicy: false,
			wantRetry:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			})

			_, err := client.Generate(context.Background(), GenerationRequest{Prompt: "x"})
			if err == nil {
				t.Fatalf("expected error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", apiErr.StatusCode, tc.status)
			}
			if got := IsContentPolicy(err); got != tc.wantPolicy {
				t.Fatalf("IsContentPolicy = %v, want %v", got, tc.wantPolicy)
			}
			if got := IsTransient(err); got != tc.wantRetry {
				t.Fatalf("IsTransient = %v, want %v", got, tc.wantRetry)
			}
		})
	}
}

func TestGenerateEmptyDataIsError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})

	_, err := client.Generate(context.Background(), GenerationRequest{Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error on empty data")
	}
}
