package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/insightflow/insightflow/tools/websearch/models"
)

const baseURL = "https://api.search.brave.com/res/v1"

type Search struct {
	ApiKey   string
	Endpoint string // overrides the brave API base in tests
}

func (s Search) Discover(ctx context.Context, q string, k int, news bool) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	base := s.Endpoint
	if base == "" {
		base = baseURL
	}
	vertical := "web"
	if news {
		vertical = "news"
	}
	endpoint := fmt.Sprintf("%s/%s/search?q=%s&count=%d", base, vertical, url.QueryEscape(q), k)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave returned status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []item `json:"results"`
		} `json:"web"`
		Results []item `json:"results"` // news vertical returns a flat list
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	items := raw.Web.Results
	if news {
		items = raw.Results
	}
	var out []models.Result
	for i, r := range items {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Description, Date: r.Age})
	}
	return out, nil
}

type item struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
}
