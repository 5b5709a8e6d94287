package websearch

import (
	"context"
	"errors"

	"github.com/insightflow/insightflow/tools/websearch/brave"
	"github.com/insightflow/insightflow/tools/websearch/models"
	"github.com/insightflow/insightflow/tools/websearch/serper"
)

// WebSearcher discovers pages for a query. News-flavored queries pass
// news=true so backends that support a dedicated news vertical use it.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, news bool) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported web search provider")

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
