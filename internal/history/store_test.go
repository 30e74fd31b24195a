package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"redub/internal/history"
	"redub/internal/pipeline"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func summary() *pipeline.Summary {
	return &pipeline.Summary{Phases: []pipeline.PhaseOutcome{
		{Name: "demux", Status: pipeline.OutcomeRan, Reason: "no manifest record", Duration: 1200 * time.Millisecond},
		{Name: "separate", Status: pipeline.OutcomeSkipped, Reason: "up to date"},
	}}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runID, err := store.RecordRun(ctx, "ep01", "/v/ep01.mp4", summary(), time.Now(), nil)
	if err != nil {
		t.Fatalf("RecordRun returned error: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.RunID != runID || r.Episode != "ep01" || r.Status != "succeeded" {
		t.Fatalf("unexpected run: %+v", r)
	}
	if r.Ran != 1 || r.Skipped != 1 || r.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", r)
	}

	phases, err := store.RunPhases(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 2 || phases[0].Phase != "demux" || phases[0].DurationMs != 1200 {
		t.Fatalf("unexpected phases: %+v", phases)
	}
}

func TestFailedRunRecordsError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.RecordRun(ctx, "ep02", "/v/ep02.mp4", summary(), time.Now(), errors.New("translate: http 500"))
	if err != nil {
		t.Fatal(err)
	}
	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if runs[0].Status != "failed" || runs[0].Error == "" {
		t.Fatalf("expected failed run with error: %+v", runs[0])
	}
}

func TestRecentRunsOrderedNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, ep := range []string{"ep01", "ep02", "ep03"} {
		if _, err := store.RecordRun(ctx, ep, "/v/"+ep+".mp4", summary(), time.Now(), nil); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Episode != "ep03" || runs[1].Episode != "ep02" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}
