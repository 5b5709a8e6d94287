package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// CodeHostConnector searches GitHub repositories related to a company.
// A token raises the search rate limit but is not required.
type CodeHostConnector struct {
	gh *gh.Client
}

func NewCodeHostConnector(token string) *CodeHostConnector {
	if token == "" {
		return &CodeHostConnector{gh: gh.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &CodeHostConnector{gh: gh.NewClient(oauth2.NewClient(context.Background(), ts))}
}

// WithClient swaps the underlying client, used by tests.
func (c *CodeHostConnector) WithClient(client *gh.Client) *CodeHostConnector {
	c.gh = client
	return c
}

func (c *CodeHostConnector) Type() SourceType { return SourceCodeHost }

func (c *CodeHostConnector) Fetch(ctx context.Context, company string, limit int) ([]RawRecord, error) {
	query := fmt.Sprintf("%q in:name,description", company)
	opts := &gh.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}
	result, _, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("repository search: %w", err)
	}

	now := time.Now()
	var records []RawRecord
	for i, repo := range result.Repositories {
		if i >= limit {
			break
		}
		var parts []string
		if desc := repo.GetDescription(); desc != "" {
			parts = append(parts, desc)
		}
		if lang := repo.GetLanguage(); lang != "" {
			parts = append(parts, "language: "+lang)
		}
		if len(repo.Topics) > 0 {
			parts = append(parts, "topics: "+strings.Join(repo.Topics, ", "))
		}
		parts = append(parts, fmt.Sprintf("stars: %d", repo.GetStargazersCount()))

		records = append(records, RawRecord{
			SourceType: SourceCodeHost,
			Title:      repo.GetFullName(),
			URL:        repo.GetHTMLURL(),
			Text:       strings.Join(parts, ". "),
			FetchedAt:  now,
		})
	}
	return records, nil
}
