package pipeline

import (
	"context"
	"time"

	"github.com/insightflow/insightflow/internal/connectors"
)

// Stage is one named step of the research state machine.
type Stage string

const (
	StageInit      Stage = "INIT"
	StageSearch    Stage = "SEARCH"
	StagePlan      Stage = "PLAN"
	StageFetch     Stage = "FETCH"
	StageClean     Stage = "CLEAN"
	StageStore     Stage = "STORE"
	StageSummarize Stage = "SUMMARIZE"
	StageDone      Stage = "DONE"
	StageFailed    Stage = "FAILED"
)

// progressByStage maps each stage to the fraction of the run completed
// when the stage begins. Consumed by the boundary layer as real
// progress, replacing any client-side simulation.
var progressByStage = map[Stage]float64{
	StageInit:      0.0,
	StageSearch:    0.05,
	StagePlan:      0.15,
	StageFetch:     0.25,
	StageClean:     0.55,
	StageStore:     0.65,
	StageSummarize: 0.9,
	StageDone:      1.0,
	StageFailed:    0.0,
}

// Document is a cleaned, deduplicated unit of company knowledge, not
// yet embedded.
type Document struct {
	DedupKey   string
	SourceType connectors.SourceType
	Title      string
	URL        string
	Content    string
	FetchedAt  time.Time
}

// IndexResult reports the outcome of the STORE stage.
type IndexResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Result is the final research payload handed to the boundary layer.
type Result struct {
	CompanyID        string         `json:"company_id"`
	CompanyName      string         `json:"company_name"`
	Summary          string         `json:"summary"`
	TotalSources     int            `json:"total_sources"`
	SourcesBreakdown map[string]int `json:"sources_breakdown"`
	Index            IndexResult    `json:"index"`
	Errors           []string       `json:"errors,omitempty"`
	Duration         time.Duration  `json:"duration"`
}

// Status is the live view of one research run.
type Status struct {
	RunID       string    `json:"run_id"`
	CompanyID   string    `json:"company_id"`
	Stage       Stage     `json:"stage"`
	Progress    float64   `json:"progress"`
	Message     string    `json:"message"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Errors      []string  `json:"errors,omitempty"`
}

// StageEvent is emitted on every state transition.
type StageEvent struct {
	RunID     string    `json:"run_id"`
	CompanyID string    `json:"company_id"`
	Stage     Stage     `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Indexer embeds cleaned documents and writes them into the company's
// vector collection.
type Indexer interface {
	Index(ctx context.Context, companyID string, docs []Document) (IndexResult, error)
}

// CompanyStore is the slice of the document store the orchestrator
// needs: company lifecycle plus derived aggregates.
type CompanyStore interface {
	EnsureCompany(ctx context.Context, id, displayName string) error
	TouchResearched(ctx context.Context, id string) error
	SourceBreakdown(ctx context.Context, companyID string) (map[string]int, error)
	CountDocuments(ctx context.Context, companyID string) (int, error)
}

// Summarizer produces the human-readable synthesis of a run.
type Summarizer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
