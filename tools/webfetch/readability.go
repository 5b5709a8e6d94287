package webfetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ReadabilityFetch downloads a page over plain HTTP and extracts the
// article body with go-readability. This is the default fetcher; it
// needs no browser and covers static pages well.
type ReadabilityFetch struct {
	Timeout  time.Duration
	MaxChars int
	Client   *http.Client
}

func (f *ReadabilityFetch) Exec(ctx context.Context, rawURL string) (Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "insightflow/1.0 (+https://github.com/insightflow/insightflow)")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{URL: rawURL, Status: 599}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{URL: rawURL, Status: resp.StatusCode}, errors.New("non-200 response")
	}

	article, err := readability.FromReader(resp.Body, mustParseURL(rawURL))
	if err != nil {
		return Result{URL: rawURL, Status: resp.StatusCode}, err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return Result{
		URL:    rawURL,
		Title:  strings.TrimSpace(article.Title),
		Byline: strings.TrimSpace(article.Byline),
		Text:   text,
		Status: resp.StatusCode,
	}, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
