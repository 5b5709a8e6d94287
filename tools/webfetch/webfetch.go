package webfetch

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// Result is the extracted article content of a fetched page.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Byline string `json:"byline"`
	Text   string `json:"text"`
	Status int    `json:"status"`
}

// ArticleFetcher retrieves a page and extracts its readable content.
type ArticleFetcher interface {
	Exec(ctx context.Context, url string) (Result, error)
}

type FetcherType string

const (
	ReadabilityFetcherType FetcherType = "readability"
	ChromedpFetcherType    FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewArticleFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (ArticleFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case ReadabilityFetcherType:
		return &ReadabilityFetch{Timeout: timeout, MaxChars: maxChars}, nil
	case ChromedpFetcherType:
		return &ChromedpFetch{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
