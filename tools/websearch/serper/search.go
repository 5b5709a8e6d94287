package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/insightflow/insightflow/tools/websearch/models"
)

const (
	searchURL = "https://google.serper.dev/search"
	newsURL   = "https://google.serper.dev/news"
)

type Search struct {
	ApiKey   string
	Endpoint string // overrides the serper.dev endpoints in tests
}

func (s Search) Discover(ctx context.Context, q string, k int, news bool) ([]models.Result, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = searchURL
		if news {
			endpoint = newsURL
		}
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []item `json:"organic"`
		News    []item `json:"news"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	items := raw.Organic
	if news {
		items = raw.News
	}
	var out []models.Result
	for i, it := range items {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet, Date: it.Date})
	}
	return out, nil
}

type item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}
