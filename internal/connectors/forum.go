package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ForumConnector searches reddit's public JSON API for community
// discussion about a company. No authentication required; reddit asks
// for a descriptive User-Agent.
type ForumConnector struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func (c *ForumConnector) Type() SourceType { return SourceForum }

func (c *ForumConnector) Fetch(ctx context.Context, company string, limit int) ([]RawRecord, error) {
	endpoint := strings.TrimRight(c.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://www.reddit.com"
	}
	params := url.Values{}
	params.Add("q", company)
	params.Add("limit", fmt.Sprintf("%d", limit))
	params.Add("sort", "relevance")
	params.Add("t", "year")

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/search.json?%s", endpoint, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forum search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forum search status %d", resp.StatusCode)
	}

	var raw struct {
		Data struct {
			Children []struct {
				Data struct {
					Title      string  `json:"title"`
					Selftext   string  `json:"selftext"`
					Permalink  string  `json:"permalink"`
					Subreddit  string  `json:"subreddit"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("forum decode: %w", err)
	}

	now := time.Now()
	var records []RawRecord
	for i, child := range raw.Data.Children {
		if i >= limit {
			break
		}
		post := child.Data
		text := post.Selftext
		if text == "" {
			text = post.Title
		}
		if post.Subreddit != "" {
			text = fmt.Sprintf("r/%s: %s", post.Subreddit, text)
		}
		records = append(records, RawRecord{
			SourceType: SourceForum,
			Title:      post.Title,
			URL:        endpoint + post.Permalink,
			Text:       text,
			FetchedAt:  now,
		})
	}
	return records, nil
}
