package pipeline

import (
	"github.com/insightflow/insightflow/internal/connectors"
)

// PlanItem is one scheduled connector call.
type PlanItem struct {
	Connector connectors.Connector
	Limit     int
}

// BuildPlan produces the deterministic fetch plan for a run: one item
// per available connector, ordered by the canonical source type order,
// each bounded by perSourceLimit. Connectors with unknown types are
// excluded.
func BuildPlan(conns []connectors.Connector, perSourceLimit int) []PlanItem {
	byType := make(map[connectors.SourceType]connectors.Connector, len(conns))
	for _, c := range conns {
		if c == nil || !c.Type().Valid() {
			continue
		}
		byType[c.Type()] = c
	}
	plan := make([]PlanItem, 0, len(byType))
	for _, st := range connectors.AllSourceTypes {
		if c, ok := byType[st]; ok {
			plan = append(plan, PlanItem{Connector: c, Limit: perSourceLimit})
		}
	}
	return plan
}
