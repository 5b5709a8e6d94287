package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/insightflow/insightflow/tools/websearch"
)

// NewsConnector fetches recent press coverage. With an API key it talks
// to a NewsAPI-compatible endpoint; without one it falls back to the
// web searcher's news vertical.
type NewsConnector struct {
	APIKey   string
	Endpoint string
	Fallback websearch.WebSearcher
	Client   *http.Client
}

type newsArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

func (c *NewsConnector) Type() SourceType { return SourceNews }

func (c *NewsConnector) Fetch(ctx context.Context, company string, limit int) ([]RawRecord, error) {
	if c.APIKey == "" {
		return c.fetchViaSearch(ctx, company, limit)
	}

	params := url.Values{}
	params.Add("q", fmt.Sprintf("%q", company))
	params.Add("sortBy", "publishedAt")
	params.Add("pageSize", fmt.Sprintf("%d", limit))
	params.Add("apiKey", c.APIKey)

	reqURL := fmt.Sprintf("%s?%s", c.Endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news api error: %s", resp.Status)
	}

	var result struct {
		Status   string        `json:"status"`
		Articles []newsArticle `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	now := time.Now()
	records := make([]RawRecord, 0, len(result.Articles))
	for _, a := range result.Articles {
		text := a.Description
		if a.Source.Name != "" {
			text = fmt.Sprintf("%s: %s", a.Source.Name, text)
		}
		records = append(records, RawRecord{
			SourceType: SourceNews,
			Title:      a.Title,
			URL:        a.URL,
			Text:       text,
			FetchedAt:  now,
		})
	}
	return records, nil
}

func (c *NewsConnector) fetchViaSearch(ctx context.Context, company string, limit int) ([]RawRecord, error) {
	if c.Fallback == nil {
		return nil, fmt.Errorf("news connector has no api key and no search fallback")
	}
	results, err := c.Fallback.Discover(ctx, fmt.Sprintf("%s latest news", company), limit, true)
	if err != nil {
		return nil, fmt.Errorf("news search: %w", err)
	}
	now := time.Now()
	records := make([]RawRecord, 0, len(results))
	for _, r := range results {
		records = append(records, RawRecord{
			SourceType: SourceNews,
			Title:      r.Title,
			URL:        r.URL,
			Text:       r.Snippet,
			FetchedAt:  now,
		})
	}
	return records, nil
}
