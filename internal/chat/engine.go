package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/insightflow/insightflow/config"
	"github.com/insightflow/insightflow/internal/chat/session"
	"github.com/insightflow/insightflow/internal/pipeline"
	"github.com/insightflow/insightflow/internal/store"
	"github.com/insightflow/insightflow/provider"
)

// ErrEmptyQuestion is returned when the chat message is blank.
var ErrEmptyQuestion = errors.New("question must not be empty")

// SearchStore is the slice of the document store the chat engine needs.
type SearchStore interface {
	CompanyExists(ctx context.Context, id string) (bool, error)
	SearchDocuments(ctx context.Context, companyID string, vector []float32, topK int) ([]store.SearchResult, error)
}

// SourceRef points at one excerpt used to ground an answer.
type SourceRef struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
}

// Response is a grounded chat answer.
type Response struct {
	Text    string      `json:"response"`
	Sources []SourceRef `json:"sources,omitempty"`
}

// Engine answers questions about a company strictly from that
// company's indexed documents. Retrieval over-fetches, reranks
// lexically, then grounds the completion on the surviving excerpts.
type Engine struct {
	llm      provider.Provider
	store    SearchStore
	sessions session.Store
	cfg      config.ChatConfig
	logger   *log.Logger
}

// NewEngine assembles a chat engine over an explicit store handle.
func NewEngine(llm provider.Provider, searchStore SearchStore, sessions session.Store, cfg config.ChatConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Engine{
		llm:      llm,
		store:    searchStore,
		sessions: sessions,
		cfg:      cfg,
		logger:   log.New(os.Stdout, "[CHAT] ", log.LstdFlags),
	}
}

// Answer responds to a question about a company. Returns
// store.ErrCompanyNotFound when the company was never researched. An
// empty retrieval result produces a deterministic fallback without
// calling the LLM.
func (e *Engine) Answer(ctx context.Context, companyName, sessionID, question string) (*Response, error) {
	companyID, display, err := pipeline.NormalizeCompanyName(companyName)
	if err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	exists, err := e.store.CompanyExists(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrCompanyNotFound
	}

	vecs, err := e.llm.CreateEmbedding(ctx, []string{question})
	if err != nil || len(vecs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty embedding response")
		}
		return nil, fmt.Errorf("embed question: %w", err)
	}

	// over-fetch so the lexical rerank has candidates to work with
	hits, err := e.store.SearchDocuments(ctx, companyID, vecs[0], 2*e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	if len(hits) == 0 {
		text := fmt.Sprintf("I don't have any indexed research for %s yet that covers this. Try running research for the company first.", display)
		e.record(ctx, sessionID, question, text)
		return &Response{Text: text}, nil
	}

	top := rerank(question, hits, e.cfg.TopK)

	history, err := e.history(ctx, sessionID)
	if err != nil {
		e.logger.Printf("session %q history unavailable: %v", sessionID, err)
	}

	answer, err := e.llm.Complete(ctx, e.buildPrompt(display, question, top, history), e.cfg.AnswerMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	e.record(ctx, sessionID, question, answer)

	sources := make([]SourceRef, 0, len(top))
	for _, hit := range top {
		sources = append(sources, SourceRef{Title: hit.Title, URL: hit.URL, SourceType: hit.SourceType})
	}
	return &Response{Text: answer, Sources: sources}, nil
}

func (e *Engine) history(ctx context.Context, sessionID string) ([]session.Turn, error) {
	if e.sessions == nil || sessionID == "" {
		return nil, nil
	}
	return e.sessions.Turns(ctx, sessionID)
}

func (e *Engine) record(ctx context.Context, sessionID, question, answer string) {
	if e.sessions == nil || sessionID == "" {
		return
	}
	now := time.Now()
	if err := e.sessions.AppendTurn(ctx, sessionID, session.Turn{Role: "user", Content: question, At: now}); err != nil {
		e.logger.Printf("session %q append failed: %v", sessionID, err)
		return
	}
	if err := e.sessions.AppendTurn(ctx, sessionID, session.Turn{Role: "assistant", Content: answer, At: now}); err != nil {
		e.logger.Printf("session %q append failed: %v", sessionID, err)
	}
}

func (e *Engine) buildPrompt(company, question string, hits []store.SearchResult, history []session.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a research assistant answering questions about %s.\n", company)
	b.WriteString("Answer using only the numbered excerpts below. If they do not contain the answer, say so plainly instead of guessing.\n\n")

	b.WriteString("Excerpts:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] (%s) %s\n%s\n\n", i+1, hit.SourceType, hit.Title, hit.Content)
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\nAnswer:", question)
	return b.String()
}
