package webfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewArticleFetcher(t *testing.T) {
	f, err := NewArticleFetcher(ReadabilityFetcherType, 0, 0)
	if err != nil {
		t.Fatalf("readability: %v", err)
	}
	rf, ok := f.(*ReadabilityFetch)
	if !ok {
		t.Fatalf("unexpected fetcher type %T", f)
	}
	if rf.Timeout != DefaultTimeout || rf.MaxChars != MaxCharsDefault {
		t.Fatalf("defaults not applied: %+v", rf)
	}

	if _, err := NewArticleFetcher(ChromedpFetcherType, time.Second, 100); err != nil {
		t.Fatalf("chromedp: %v", err)
	}
	if _, err := NewArticleFetcher("curl", 0, 0); !errors.Is(err, ErrUnsupportedFetcher) {
		t.Fatalf("expected ErrUnsupportedFetcher, got %v", err)
	}
}

func TestReadabilityFetchExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Acme anvils</title></head><body>
<article><h1>Acme anvils</h1><p>Acme has been forging anvils since 1949. The flagship line now ships worldwide and the company reports steady growth across industrial customers.</p>
<p>Analysts describe the anvil market as small but durable.</p></article>
</body></html>`))
	}))
	defer srv.Close()

	f := &ReadabilityFetch{Timeout: 5 * time.Second, MaxChars: 20000}
	res, err := f.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Status != http.StatusOK {
		t.Fatalf("status = %d", res.Status)
	}
	if !strings.Contains(res.Text, "forging anvils since 1949") {
		t.Fatalf("article text missing: %q", res.Text)
	}
}

func TestReadabilityFetchBoundsLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><article><p>" + strings.Repeat("anvil facts. ", 500) + "</p></article></body></html>"))
	}))
	defer srv.Close()

	f := &ReadabilityFetch{Timeout: 5 * time.Second, MaxChars: 100}
	res, err := f.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(res.Text) > 100 {
		t.Fatalf("text not bounded: %d bytes", len(res.Text))
	}
}
