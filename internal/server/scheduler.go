package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/insightflow/insightflow/internal/pipeline"
	"github.com/insightflow/insightflow/internal/store"
)

// Scheduler periodically re-runs research for companies carrying a
// refresh schedule. The redis lock keeps replicas from refreshing the
// same company twice.
type Scheduler struct {
	Store    *store.Store
	Orch     *pipeline.Orchestrator
	Rdb      *redis.Client
	Interval time.Duration
	Stop     chan struct{}
}

func (s *Scheduler) Start() {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	companies, err := s.Store.ListCompanies(ctx)
	if err != nil {
		log.Printf("[SCHED] list companies failed: %v", err)
		return
	}
	for _, company := range companies {
		if company.RefreshCron == "" {
			continue
		}
		if !isDue(company.RefreshCron, company.LastResearchedAt) {
			continue
		}

		if s.Rdb != nil {
			lockKey := "insightflow:sched:lock:" + company.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
			if !ok {
				continue
			}
		}

		go func(c store.Company) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+time.Now().UnixNano()%250) * time.Millisecond)
			if _, err := s.Orch.Research(ctx, c.DisplayName); err != nil {
				log.Printf("[SCHED] refresh for %q failed: %v", c.ID, err)
			}
		}(company)
	}
}

// isDue determines whether a company with cronSpec should refresh now
// given its last research time. Supports "@daily", "@hourly" and
// standard 5-field cron expressions; invalid specs fall back to daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
