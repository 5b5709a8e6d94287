package server

import (
	"testing"
	"time"
)

func TestIsDueNeverRun(t *testing.T) {
	for _, spec := range []string{"@daily", "@hourly", "0 6 * * *", "not a cron"} {
		if !isDue(spec, nil) {
			t.Fatalf("isDue(%q, nil) = false, want true", spec)
		}
	}
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("@daily", &recent) {
		t.Fatal("ran an hour ago, daily refresh must not be due")
	}
	stale := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &stale) {
		t.Fatal("ran 25h ago, daily refresh must be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatal("ran 10m ago, hourly refresh must not be due")
	}
	stale := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &stale) {
		t.Fatal("ran 2h ago, hourly refresh must be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// every minute: anything older than a minute is due
	stale := time.Now().Add(-5 * time.Minute)
	if !isDue("* * * * *", &stale) {
		t.Fatal("expected due for every-minute cron")
	}

	// yearly far in the future relative to a very recent run
	recent := time.Now().Add(-time.Second)
	if isDue("0 0 1 1 *", &recent) {
		t.Fatal("yearly cron must not be due right after a run")
	}
}

func TestIsDueInvalidSpecFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("nonsense", &recent) {
		t.Fatal("invalid spec should behave like @daily")
	}
	stale := time.Now().Add(-25 * time.Hour)
	if !isDue("nonsense", &stale) {
		t.Fatal("invalid spec should behave like @daily")
	}
}
