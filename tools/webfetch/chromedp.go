package webfetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// ChromedpFetch renders the page in headless Chrome before extraction.
// Use it for JS-heavy sites where the static HTML carries no content.
type ChromedpFetch struct {
	Timeout  time.Duration
	MaxChars int
}

func (f *ChromedpFetch) Exec(ctx context.Context, url string) (Result, error) {
	if strings.TrimSpace(url) == "" {
		return Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	html, err := renderHTML(ctx, url)
	if err != nil {
		return Result{URL: url, Status: 599}, err
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(url))
	if err != nil {
		return Result{URL: url, Status: 200}, err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return Result{
		URL:    url,
		Title:  strings.TrimSpace(article.Title),
		Byline: strings.TrimSpace(article.Byline),
		Text:   text,
		Status: 200,
	}, nil
}

func renderHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("insightflow/1.0 (+https://github.com/insightflow/insightflow)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
