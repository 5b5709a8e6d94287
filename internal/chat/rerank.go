package chat

import (
	"github.com/blevesearch/bleve"

	"github.com/insightflow/insightflow/internal/store"
)

type rerankDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// rerank reorders vector hits by lexical relevance to the question
// using a throwaway in-memory bleve index, then cuts to k. Hits the
// lexical pass does not match keep their vector order and fill the
// tail. Any indexing failure falls back to the vector order.
func rerank(question string, hits []store.SearchResult, k int) []store.SearchResult {
	if k <= 0 || len(hits) == 0 {
		return nil
	}
	if len(hits) <= k {
		return hits
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return hits[:k]
	}
	defer idx.Close()

	byKey := make(map[string]store.SearchResult, len(hits))
	for _, hit := range hits {
		byKey[hit.DedupKey] = hit
		if err := idx.Index(hit.DedupKey, rerankDoc{Title: hit.Title, Content: hit.Content}); err != nil {
			return hits[:k]
		}
	}

	query := bleve.NewMatchQuery(question)
	req := bleve.NewSearchRequestOptions(query, len(hits), 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return hits[:k]
	}

	ranked := make([]store.SearchResult, 0, k)
	taken := make(map[string]struct{}, k)
	for _, hit := range res.Hits {
		if doc, ok := byKey[hit.ID]; ok {
			ranked = append(ranked, doc)
			taken[hit.ID] = struct{}{}
			if len(ranked) == k {
				return ranked
			}
		}
	}
	for _, hit := range hits {
		if _, ok := taken[hit.DedupKey]; ok {
			continue
		}
		ranked = append(ranked, hit)
		if len(ranked) == k {
			break
		}
	}
	return ranked
}
