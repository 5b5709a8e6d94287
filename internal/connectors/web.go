package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/insightflow/insightflow/tools/webfetch"
	"github.com/insightflow/insightflow/tools/websearch"
)

// WebConnector discovers general web pages about a company through the
// configured search backend. When an article fetcher is attached, the
// top results are deep-fetched so the stored text is the article body
// rather than a search snippet.
type WebConnector struct {
	Searcher  websearch.WebSearcher
	Fetcher   webfetch.ArticleFetcher
	FetchTopN int
}

func (c *WebConnector) Type() SourceType { return SourceWeb }

func (c *WebConnector) Fetch(ctx context.Context, company string, limit int) ([]RawRecord, error) {
	query := fmt.Sprintf("%s company products services", company)
	results, err := c.Searcher.Discover(ctx, query, limit, false)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	now := time.Now()
	records := make([]RawRecord, 0, len(results))
	for _, r := range results {
		records = append(records, RawRecord{
			SourceType: SourceWeb,
			Title:      r.Title,
			URL:        r.URL,
			Text:       r.Snippet,
			FetchedAt:  now,
		})
	}

	if c.Fetcher != nil {
		topN := c.FetchTopN
		if topN <= 0 || topN > len(records) {
			topN = len(records)
		}
		for i := 0; i < topN; i++ {
			if ctx.Err() != nil {
				break
			}
			article, err := c.Fetcher.Exec(ctx, records[i].URL)
			if err != nil {
				continue // snippet stays as fallback
			}
			if len(article.Text) > len(records[i].Text) {
				records[i].Text = article.Text
			}
			if article.Title != "" {
				records[i].Title = article.Title
			}
		}
	}

	return records, nil
}
