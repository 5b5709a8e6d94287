package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/insightflow/insightflow/config"
	"github.com/insightflow/insightflow/internal/connectors"
)

type fakeConnector struct {
	sourceType connectors.SourceType
	records    []connectors.RawRecord
	err        error
}

func (f *fakeConnector) Type() connectors.SourceType { return f.sourceType }

func (f *fakeConnector) Fetch(_ context.Context, _ string, _ int) ([]connectors.RawRecord, error) {
	return f.records, f.err
}

type fakeIndexer struct {
	mu     sync.Mutex
	calls  int
	docs   []Document
	result IndexResult
	err    error
}

func (f *fakeIndexer) Index(_ context.Context, _ string, docs []Document) (IndexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.docs = docs
	if f.err != nil {
		return IndexResult{}, f.err
	}
	if f.result == (IndexResult{}) {
		return IndexResult{Written: len(docs)}, nil
	}
	return f.result, nil
}

type fakeCompanyStore struct {
	ensured   []string
	touched   []string
	breakdown map[string]int
	total     int
	ensureErr error
}

func (f *fakeCompanyStore) EnsureCompany(_ context.Context, id, _ string) error {
	f.ensured = append(f.ensured, id)
	return f.ensureErr
}

func (f *fakeCompanyStore) TouchResearched(_ context.Context, id string) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeCompanyStore) SourceBreakdown(_ context.Context, _ string) (map[string]int, error) {
	return f.breakdown, nil
}

func (f *fakeCompanyStore) CountDocuments(_ context.Context, _ string) (int, error) {
	return f.total, nil
}

type fakeSummarizer struct {
	prompt string
	out    string
	err    error
}

func (f *fakeSummarizer) Complete(_ context.Context, prompt string, _ int) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func testResearchConfig() config.ResearchConfig {
	return config.ResearchConfig{
		PerSourceLimit:    5,
		FetchTimeout:      time.Second,
		MaxContentChars:   4000,
		MinContentChars:   10,
		EmbedConcurrency:  2,
		SummarySampleSize: 5,
		SummaryMaxTokens:  512,
	}
}

func record(st connectors.SourceType, n int) connectors.RawRecord {
	return connectors.RawRecord{
		SourceType: st,
		Title:      fmt.Sprintf("%s item %d", st, n),
		URL:        fmt.Sprintf("https://example.com/%s/%d", st, n),
		Text:       fmt.Sprintf("Detailed %s content number %d about the company under research.", st, n),
		FetchedAt:  time.Now(),
	}
}

func recordsFor(st connectors.SourceType, n int) []connectors.RawRecord {
	out := make([]connectors.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, record(st, i))
	}
	return out
}

func TestResearchHappyPathWithPartialSourceFailure(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, records: recordsFor(connectors.SourceWeb, 3)},
		&fakeConnector{sourceType: connectors.SourceNews, records: recordsFor(connectors.SourceNews, 2)},
		&fakeConnector{sourceType: connectors.SourceForum, err: errors.New("rate limited")},
		&fakeConnector{sourceType: connectors.SourceCodeHost, records: recordsFor(connectors.SourceCodeHost, 1)},
	}
	idx := &fakeIndexer{}
	st := &fakeCompanyStore{
		breakdown: map[string]int{"web": 3, "news": 2, "code_host": 1},
		total:     6,
	}
	sum := &fakeSummarizer{out: "Company Overview\n..."}

	orch := NewOrchestrator(testResearchConfig(), conns, idx, st, sum)

	var events []Stage
	orch.OnStage(func(ev StageEvent) { events = append(events, ev.Stage) })

	result, err := orch.Research(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if result.CompanyID != "acme corp" || result.CompanyName != "Acme Corp" {
		t.Fatalf("unexpected identity: %+v", result)
	}
	if result.TotalSources != 6 {
		t.Fatalf("TotalSources = %d, want 6", result.TotalSources)
	}
	if result.SourcesBreakdown["web"] != 3 || result.SourcesBreakdown["news"] != 2 || result.SourcesBreakdown["code_host"] != 1 {
		t.Fatalf("unexpected breakdown: %v", result.SourcesBreakdown)
	}
	if result.Index.Written != 6 {
		t.Fatalf("Index.Written = %d, want 6", result.Index.Written)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "forum") {
		t.Fatalf("expected one forum error, got %v", result.Errors)
	}
	if result.Summary != "Company Overview\n..." {
		t.Fatalf("Summary = %q", result.Summary)
	}

	want := []Stage{StageInit, StageSearch, StagePlan, StageFetch, StageClean, StageStore, StageSummarize, StageDone}
	if len(events) != len(want) {
		t.Fatalf("stage events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("stage events = %v, want %v", events, want)
		}
	}

	if len(st.ensured) != 1 || st.ensured[0] != "acme corp" {
		t.Fatalf("EnsureCompany calls: %v", st.ensured)
	}
	if len(st.touched) != 1 {
		t.Fatalf("TouchResearched calls: %v", st.touched)
	}
	if !strings.Contains(sum.prompt, "Market Sentiment") || !strings.Contains(sum.prompt, "Recommendation") {
		t.Fatalf("summary prompt missing sections: %q", sum.prompt)
	}
}

func TestResearchInvalidCompanyName(t *testing.T) {
	orch := NewOrchestrator(testResearchConfig(), nil, &fakeIndexer{}, &fakeCompanyStore{}, &fakeSummarizer{})
	_, err := orch.Research(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidCompany) {
		t.Fatalf("expected ErrInvalidCompany, got %v", err)
	}
}

func TestResearchFailsWhenAllSourcesEmpty(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, err: errors.New("down")},
		&fakeConnector{sourceType: connectors.SourceNews, err: errors.New("down")},
	}
	idx := &fakeIndexer{}
	orch := NewOrchestrator(testResearchConfig(), conns, idx, &fakeCompanyStore{}, &fakeSummarizer{})

	_, err := orch.Research(context.Background(), "Acme")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageClean {
		t.Fatalf("expected CLEAN stage error, got %v", err)
	}
	if idx.calls != 0 {
		t.Fatal("indexer must not run when cleaning yields nothing")
	}
}

func TestResearchIndexDependencyFailure(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, records: recordsFor(connectors.SourceWeb, 2)},
	}
	idx := &fakeIndexer{err: errors.New("provider unreachable")}
	orch := NewOrchestrator(testResearchConfig(), conns, idx, &fakeCompanyStore{}, &fakeSummarizer{})

	_, err := orch.Research(context.Background(), "Acme")
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != StageStore || !stageErr.Retryable {
		t.Fatalf("expected retryable STORE failure, got %+v", stageErr)
	}
}

func TestResearchSummaryFailureIsRecoverable(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, records: recordsFor(connectors.SourceWeb, 2)},
	}
	st := &fakeCompanyStore{breakdown: map[string]int{"web": 2}, total: 2}
	orch := NewOrchestrator(testResearchConfig(), conns, &fakeIndexer{}, st, &fakeSummarizer{err: errors.New("timeout")})

	result, err := orch.Research(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if result.Summary == "" {
		t.Fatal("expected fallback summary")
	}
	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "summary") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected summary failure recorded, got %v", result.Errors)
	}
}

func TestResearchRerunIsIdempotentAtIndexLayer(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, records: recordsFor(connectors.SourceWeb, 2)},
	}
	idx := &fakeIndexer{result: IndexResult{Skipped: 2}}
	st := &fakeCompanyStore{breakdown: map[string]int{"web": 2}, total: 2}
	orch := NewOrchestrator(testResearchConfig(), conns, idx, st, &fakeSummarizer{out: "ok"})

	result, err := orch.Research(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if result.Index.Written != 0 || result.Index.Skipped != 2 {
		t.Fatalf("expected all documents skipped on rerun, got %+v", result.Index)
	}
	if result.TotalSources != 2 {
		t.Fatalf("TotalSources = %d, want 2", result.TotalSources)
	}
}

func TestRunStatusSnapshot(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, records: recordsFor(connectors.SourceWeb, 1)},
	}
	st := &fakeCompanyStore{breakdown: map[string]int{"web": 1}, total: 1}
	orch := NewOrchestrator(testResearchConfig(), conns, &fakeIndexer{}, st, &fakeSummarizer{out: "ok"})

	var runID string
	orch.OnStage(func(ev StageEvent) { runID = ev.RunID })

	if _, err := orch.Research(context.Background(), "Acme"); err != nil {
		t.Fatalf("Research: %v", err)
	}

	status, ok := orch.RunStatus(runID)
	if !ok {
		t.Fatal("run status missing")
	}
	if status.Stage != StageDone || status.Progress != 1.0 {
		t.Fatalf("unexpected status: %+v", status)
	}

	if _, ok := orch.CompanyStatus("acme"); !ok {
		t.Fatal("company status missing")
	}
	if _, ok := orch.RunStatus("nope"); ok {
		t.Fatal("unknown run must not resolve")
	}
}

func TestBuildPlanDeterministicOrder(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceCodeHost},
		&fakeConnector{sourceType: connectors.SourceWeb},
		&fakeConnector{sourceType: connectors.SourceForum},
		&fakeConnector{sourceType: connectors.SourceNews},
	}
	plan := BuildPlan(conns, 7)
	if len(plan) != 4 {
		t.Fatalf("plan length = %d", len(plan))
	}
	want := []connectors.SourceType{connectors.SourceWeb, connectors.SourceNews, connectors.SourceForum, connectors.SourceCodeHost}
	for i, item := range plan {
		if item.Connector.Type() != want[i] {
			t.Fatalf("plan[%d] = %s, want %s", i, item.Connector.Type(), want[i])
		}
		if item.Limit != 7 {
			t.Fatalf("plan[%d].Limit = %d", i, item.Limit)
		}
	}
}

func TestResearchEvictsFinishedRunsForCompany(t *testing.T) {
	conns := []connectors.Connector{
		&fakeConnector{sourceType: connectors.SourceWeb, records: recordsFor(connectors.SourceWeb, 2)},
	}
	st := &fakeCompanyStore{breakdown: map[string]int{"web": 2}, total: 2}
	orch := NewOrchestrator(testResearchConfig(), conns, &fakeIndexer{}, st, &fakeSummarizer{out: "summary"})

	if _, err := orch.Research(context.Background(), "Acme"); err != nil {
		t.Fatalf("first Research: %v", err)
	}
	first, ok := orch.CompanyStatus("acme")
	if !ok {
		t.Fatal("company status missing after first run")
	}

	if _, err := orch.Research(context.Background(), "Acme"); err != nil {
		t.Fatalf("second Research: %v", err)
	}

	orch.mu.Lock()
	kept := len(orch.runs)
	orch.mu.Unlock()
	if kept != 1 {
		t.Fatalf("runs retained = %d, want 1", kept)
	}

	latest, ok := orch.CompanyStatus("acme")
	if !ok {
		t.Fatal("company status missing after second run")
	}
	if latest.RunID == first.RunID {
		t.Fatal("latest status still points at the evicted run")
	}
	if _, ok := orch.RunStatus(first.RunID); ok {
		t.Fatal("finished first run should be evicted")
	}
}
