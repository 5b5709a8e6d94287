package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/insightflow/insightflow/internal/pipeline"
)

var (
	researchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightflow_research_runs_total",
		Help: "Research runs by outcome.",
	}, []string{"outcome"})

	stageEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightflow_stage_events_total",
		Help: "Stage transitions across all research runs.",
	}, []string{"stage"})

	documentsIndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightflow_documents_indexed_total",
		Help: "Documents by indexing result.",
	}, []string{"result"})

	chatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightflow_chat_requests_total",
		Help: "Chat requests by outcome.",
	}, []string{"outcome"})
)

func observeStage(ev pipeline.StageEvent) {
	stageEventsTotal.WithLabelValues(string(ev.Stage)).Inc()
}

func observeRun(result *pipeline.Result, err error) {
	if err != nil {
		researchRunsTotal.WithLabelValues("failed").Inc()
		return
	}
	researchRunsTotal.WithLabelValues("succeeded").Inc()
	documentsIndexedTotal.WithLabelValues("written").Add(float64(result.Index.Written))
	documentsIndexedTotal.WithLabelValues("skipped").Add(float64(result.Index.Skipped))
	documentsIndexedTotal.WithLabelValues("failed").Add(float64(result.Index.Failed))
}
