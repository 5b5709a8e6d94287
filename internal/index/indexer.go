package index

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/insightflow/insightflow/internal/pipeline"
	"github.com/insightflow/insightflow/internal/store"
)

// Embedder is the slice of the LLM provider the indexer needs.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentStore persists embedded documents into a company's
// collection.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc store.Document) (bool, error)
}

// Indexer embeds cleaned documents and upserts them into the vector
// store. Per-document failures are absorbed into the Failed count; the
// stage only errors when nothing at all could be indexed.
type Indexer struct {
	embedder    Embedder
	store       DocumentStore
	concurrency int
	logger      *log.Logger
}

// New builds an Indexer. Concurrency bounds in-flight embedding calls.
func New(embedder Embedder, docStore DocumentStore, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Indexer{
		embedder:    embedder,
		store:       docStore,
		concurrency: concurrency,
		logger:      log.New(os.Stdout, "[INDEX] ", log.LstdFlags),
	}
}

// Index implements pipeline.Indexer.
func (ix *Indexer) Index(ctx context.Context, companyID string, docs []pipeline.Document) (pipeline.IndexResult, error) {
	var result pipeline.IndexResult
	if len(docs) == 0 {
		return result, nil
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		firstErr  error
		semaphore = make(chan struct{}, ix.concurrency)
	)

	recordErr := func(err error) {
		mu.Lock()
		result.Failed++
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, doc := range docs {
		wg.Add(1)
		go func(doc pipeline.Document) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			vecs, err := ix.embedder.CreateEmbedding(ctx, []string{doc.Content})
			if err != nil || len(vecs) == 0 {
				if err == nil {
					err = fmt.Errorf("empty embedding response")
				}
				ix.logger.Printf("company %q embed failed for %s: %v", companyID, doc.DedupKey, err)
				recordErr(err)
				return
			}

			written, err := ix.store.UpsertDocument(ctx, store.Document{
				CompanyID:  companyID,
				DedupKey:   doc.DedupKey,
				SourceType: string(doc.SourceType),
				Title:      doc.Title,
				URL:        doc.URL,
				Content:    doc.Content,
				Embedding:  vecs[0],
				FetchedAt:  doc.FetchedAt,
			})
			if err != nil {
				ix.logger.Printf("company %q upsert failed for %s: %v", companyID, doc.DedupKey, err)
				recordErr(err)
				return
			}

			mu.Lock()
			if written {
				result.Written++
			} else {
				result.Skipped++
			}
			mu.Unlock()
		}(doc)
	}
	wg.Wait()

	if result.Written+result.Skipped == 0 {
		return result, fmt.Errorf("indexing produced no documents: %w", firstErr)
	}
	return result, nil
}
