package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insightflow/insightflow/config"
	"github.com/insightflow/insightflow/internal/connectors"
)

// Orchestrator drives one research run through the stage machine:
// INIT -> SEARCH -> PLAN -> FETCH -> CLEAN -> STORE -> SUMMARIZE -> DONE.
// Connector and per-document failures are recoverable; the run only
// fails on an invalid company name, zero usable documents after CLEAN,
// or an indexing dependency failure.
type Orchestrator struct {
	cfg        config.ResearchConfig
	connectors []connectors.Connector
	indexer    Indexer
	store      CompanyStore
	summarizer Summarizer
	logger     *log.Logger

	mu      sync.Mutex
	runs    map[string]*Status
	onStage func(StageEvent)
}

// NewOrchestrator assembles an orchestrator over explicit dependencies.
func NewOrchestrator(cfg config.ResearchConfig, conns []connectors.Connector, indexer Indexer, store CompanyStore, summarizer Summarizer) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		connectors: conns,
		indexer:    indexer,
		store:      store,
		summarizer: summarizer,
		logger:     log.New(os.Stdout, "[ORCH] ", log.LstdFlags),
		runs:       make(map[string]*Status),
	}
}

// OnStage registers a hook invoked on every stage transition. Must be
// set before the first Research call.
func (o *Orchestrator) OnStage(fn func(StageEvent)) { o.onStage = fn }

// RunStatus returns a snapshot of a run's live status.
func (o *Orchestrator) RunStatus(runID string) (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.runs[runID]
	if !ok {
		return Status{}, false
	}
	snapshot := *st
	snapshot.Errors = append([]string(nil), st.Errors...)
	return snapshot, true
}

// CompanyStatus returns the most recent run status for a company.
func (o *Orchestrator) CompanyStatus(companyID string) (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var latest *Status
	for _, st := range o.runs {
		if st.CompanyID != companyID {
			continue
		}
		if latest == nil || st.StartedAt.After(latest.StartedAt) {
			latest = st
		}
	}
	if latest == nil {
		return Status{}, false
	}
	snapshot := *latest
	snapshot.Errors = append([]string(nil), latest.Errors...)
	return snapshot, true
}

func (o *Orchestrator) updateStatus(runID string, stage Stage, message string) {
	o.mu.Lock()
	st, ok := o.runs[runID]
	if !ok {
		o.mu.Unlock()
		return
	}
	st.Stage = stage
	st.Progress = progressByStage[stage]
	st.Message = message
	st.LastUpdated = time.Now()
	event := StageEvent{
		RunID:     st.RunID,
		CompanyID: st.CompanyID,
		Stage:     stage,
		Progress:  st.Progress,
		Message:   message,
		At:        st.LastUpdated,
	}
	hook := o.onStage
	o.mu.Unlock()

	o.logger.Printf("run %s company %q stage=%s %s", event.RunID, event.CompanyID, stage, message)
	if hook != nil {
		hook(event)
	}
}

func (o *Orchestrator) appendError(runID, msg string) {
	o.mu.Lock()
	if st, ok := o.runs[runID]; ok {
		st.Errors = append(st.Errors, msg)
		st.LastUpdated = time.Now()
	}
	o.mu.Unlock()
}

// Research executes a full run for the given raw company name and
// blocks until the run finishes. A rerun over unchanged sources is
// idempotent at the store layer.
func (o *Orchestrator) Research(ctx context.Context, companyName string) (*Result, error) {
	companyID, display, err := NormalizeCompanyName(companyName)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	started := time.Now()
	o.mu.Lock()
	// keep only the latest finished run per company so the status map
	// stays bounded under scheduled refreshes
	for id, st := range o.runs {
		if st.CompanyID == companyID && (st.Stage == StageDone || st.Stage == StageFailed) {
			delete(o.runs, id)
		}
	}
	o.runs[runID] = &Status{
		RunID:     runID,
		CompanyID: companyID,
		Stage:     StageInit,
		StartedAt: started,
	}
	o.mu.Unlock()
	o.updateStatus(runID, StageInit, fmt.Sprintf("starting research for %q", display))

	if err := o.store.EnsureCompany(ctx, companyID, display); err != nil {
		o.updateStatus(runID, StageFailed, "company registration failed")
		return nil, retryableErr(StageInit, err)
	}

	o.updateStatus(runID, StageSearch, "selecting sources")
	o.updateStatus(runID, StagePlan, "building fetch plan")
	plan := BuildPlan(o.connectors, o.cfg.PerSourceLimit)

	o.updateStatus(runID, StageFetch, fmt.Sprintf("fetching from %d sources", len(plan)))
	records := o.fetchAll(ctx, runID, display, plan)

	o.updateStatus(runID, StageClean, fmt.Sprintf("cleaning %d records", len(records)))
	docs, stats := Clean(records, o.cfg.MaxContentChars, o.cfg.MinContentChars)
	if stats.Duplicates > 0 || stats.TooShort > 0 {
		o.logger.Printf("run %s clean kept=%d duplicates=%d too_short=%d", runID, stats.Kept, stats.Duplicates, stats.TooShort)
	}
	if len(docs) == 0 {
		o.updateStatus(runID, StageFailed, "no usable documents")
		return nil, stageErr(StageClean, ErrNoData)
	}

	o.updateStatus(runID, StageStore, fmt.Sprintf("indexing %d documents", len(docs)))
	indexed, err := o.indexer.Index(ctx, companyID, docs)
	if err != nil {
		o.updateStatus(runID, StageFailed, "indexing failed")
		return nil, retryableErr(StageStore, err)
	}
	if indexed.Failed > 0 {
		o.appendError(runID, fmt.Sprintf("%d documents failed to embed", indexed.Failed))
	}

	o.updateStatus(runID, StageSummarize, "summarizing findings")
	summary, err := o.summarize(ctx, display, docs)
	if err != nil {
		o.appendError(runID, fmt.Sprintf("summary generation failed: %v", err))
		summary = fmt.Sprintf("Research for %s completed with %d documents indexed; summary generation was unavailable.", display, indexed.Written+indexed.Skipped)
	}

	breakdown, err := o.store.SourceBreakdown(ctx, companyID)
	if err != nil {
		o.appendError(runID, fmt.Sprintf("source breakdown unavailable: %v", err))
		breakdown = map[string]int{}
	}
	total, err := o.store.CountDocuments(ctx, companyID)
	if err != nil {
		o.appendError(runID, fmt.Sprintf("document count unavailable: %v", err))
	}
	if err := o.store.TouchResearched(ctx, companyID); err != nil {
		o.appendError(runID, fmt.Sprintf("refresh timestamp update failed: %v", err))
	}

	o.updateStatus(runID, StageDone, "research complete")

	o.mu.Lock()
	runErrors := append([]string(nil), o.runs[runID].Errors...)
	o.mu.Unlock()

	return &Result{
		CompanyID:        companyID,
		CompanyName:      display,
		Summary:          summary,
		TotalSources:     total,
		SourcesBreakdown: breakdown,
		Index:            indexed,
		Errors:           runErrors,
		Duration:         time.Since(started),
	}, nil
}

// fetchAll fans out over the plan and joins all connector results.
// Individual connector failures are recorded and absorbed.
func (o *Orchestrator) fetchAll(ctx context.Context, runID, company string, plan []PlanItem) []connectors.RawRecord {
	type fetchOut struct {
		order   int
		source  connectors.SourceType
		records []connectors.RawRecord
		err     error
	}

	results := make([]fetchOut, len(plan))
	var wg sync.WaitGroup
	for i, item := range plan {
		wg.Add(1)
		go func(order int, item PlanItem) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
			defer cancel()
			recs, err := item.Connector.Fetch(callCtx, company, item.Limit)
			results[order] = fetchOut{order: order, source: item.Connector.Type(), records: recs, err: err}
		}(i, item)
	}
	wg.Wait()

	var all []connectors.RawRecord
	for _, out := range results {
		if out.err != nil {
			o.logger.Printf("run %s connector %s failed: %v", runID, out.source, out.err)
			o.appendError(runID, fmt.Sprintf("source %s unavailable: %v", out.source, out.err))
			continue
		}
		all = append(all, out.records...)
	}
	return all
}

func (o *Orchestrator) summarize(ctx context.Context, company string, docs []Document) (string, error) {
	sample := docs
	if o.cfg.SummarySampleSize > 0 && len(sample) > o.cfg.SummarySampleSize {
		sample = sample[:o.cfg.SummarySampleSize]
	}

	var b strings.Builder
	for i, doc := range sample {
		fmt.Fprintf(&b, "[%d] (%s) %s\n%s\n\n", i+1, doc.SourceType, doc.Title, doc.Content)
	}

	prompt := fmt.Sprintf(`You are a company research analyst. Based on the following research excerpts about %s, write a concise briefing with exactly these sections:

Company Overview
Key Findings
Market Sentiment
Recommendation

Research excerpts:
%s`, company, b.String())

	return o.summarizer.Complete(ctx, prompt, o.cfg.SummaryMaxTokens)
}
