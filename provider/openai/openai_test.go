package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 || req.MaxTokens != 128 {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-4o-mini", "text-embedding-3-small", 1536, 0.4, time.Second)
	out, err := c.Complete(context.Background(), "say hello", 128)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello" {
		t.Fatalf("Complete = %q", out)
	}
}

func TestCompleteErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad", srv.URL, "gpt-4o-mini", "", 0, 0, time.Second)
	_, err := c.Complete(context.Background(), "hi", 10)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateEmbeddingPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["dimensions"] != float64(4) {
			t.Fatalf("dimensions = %v", req["dimensions"])
		}
		// indices out of order on purpose
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{1, 1, 1, 1}},
				{"index": 0, "embedding": []float32{0, 0, 0, 0}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, "", "text-embedding-3-small", 4, 0, time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0 || vecs[1][0] != 1 {
		t.Fatalf("order not preserved: %v", vecs)
	}
}

func TestCreateEmbeddingEmptyInput(t *testing.T) {
	c := NewClient("key", "http://unused", "", "m", 0, 0, time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil, nil; got %v, %v", vecs, err)
	}
}
