package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/insightflow/insightflow/config"
	"github.com/insightflow/insightflow/tools/webfetch"
	"github.com/insightflow/insightflow/tools/websearch"
)

// SourceType identifies where a raw record came from.
type SourceType string

const (
	SourceWeb      SourceType = "web"
	SourceNews     SourceType = "news"
	SourceForum    SourceType = "forum"
	SourceCodeHost SourceType = "code_host"
)

// AllSourceTypes lists every connector variant in plan order.
var AllSourceTypes = []SourceType{SourceWeb, SourceNews, SourceForum, SourceCodeHost}

// Valid reports whether s names a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceWeb, SourceNews, SourceForum, SourceCodeHost:
		return true
	}
	return false
}

// RawRecord is an unprocessed unit of fetched company information.
type RawRecord struct {
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Text       string     `json:"text"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// Connector fetches raw records about a company from one source kind.
// Implementations must honor ctx cancellation; the orchestrator applies
// the per-call timeout and treats errors as recoverable.
type Connector interface {
	Type() SourceType
	Fetch(ctx context.Context, company string, limit int) ([]RawRecord, error)
}

// Build constructs the four connectors from configuration. A missing
// web search API key is an error since web and news both depend on it;
// the code host connector works unauthenticated at a lower rate limit.
func Build(cfg config.SourcesConfig) ([]Connector, error) {
	searcher, err := websearch.NewWebSearcher(websearch.Provider(cfg.WebSearch.Provider), cfg.WebSearch.APIKey)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	var fetcher webfetch.ArticleFetcher
	if cfg.Fetch.Enabled {
		fetcher, err = webfetch.NewArticleFetcher(webfetch.FetcherType(cfg.Fetch.Fetcher), cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
		if err != nil {
			return nil, fmt.Errorf("article fetcher: %w", err)
		}
	}

	return []Connector{
		&WebConnector{Searcher: searcher, Fetcher: fetcher, FetchTopN: cfg.Fetch.TopN},
		&NewsConnector{APIKey: cfg.News.APIKey, Endpoint: cfg.News.Endpoint, Fallback: searcher},
		&ForumConnector{Endpoint: cfg.Forum.Endpoint, UserAgent: cfg.Forum.UserAgent},
		NewCodeHostConnector(cfg.CodeHost.Token),
	}, nil
}
