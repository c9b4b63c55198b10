package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Syncer is the batch job that pulls the current page of open tenders,
// normalizes each record and upserts it into the store. New references are
// created; existing ones only have their phase (and updated-at) refreshed.
//
// One record at a time, in fetch order: a failed write is logged with the
// offending reference and the batch continues. Running the same batch twice
// against unchanged upstream data performs zero mutations. Concurrent runs
// are not safe; single-writer scheduling is the caller's responsibility.
type Syncer struct {
	Fetcher Fetcher
	Store   TenderStore
	Runs    RunRecorder // optional
}

func NewSyncer(fetcher Fetcher, store TenderStore, runs RunRecorder) *Syncer {
	return &Syncer{Fetcher: fetcher, Store: store, Runs: runs}
}

// SyncBatch runs one discovery batch (no code filter: the sync persists the
// whole open feed; interest filtering happens at query time). The returned
// error is non-nil only for batch-fatal conditions, i.e. the store being
// unreachable; per-record failures are reflected in Stats.Errors.
func (s *Syncer) SyncBatch(ctx context.Context) (SyncStats, error) {
	start := time.Now()
	stats := SyncStats{}

	runID, haveRun := s.startRun(ctx)

	tenders := s.Fetcher.FetchOpportunities(ctx, nil)
	stats.Fetched = len(tenders)

	for _, t := range tenders {
		existing, err := s.Store.FindByReference(ctx, t.Reference)
		if err != nil {
			// Lookup failure means the store itself is unhealthy; partial
			// counts past this point are not meaningful.
			s.finishRun(ctx, runID, haveRun, "failed", stats)
			return stats, fmt.Errorf("lookup %q: %w", t.Reference, err)
		}

		switch {
		case existing == nil:
			if err := s.Store.CreateTender(ctx, t); err != nil {
				log.Printf("[sync] create %q failed: %v", t.Reference, err)
				stats.Errors++
				continue
			}
			stats.Created++
		case existing.Phase != t.Phase:
			if err := s.Store.UpdateTenderPhase(ctx, t.Reference, t.Phase); err != nil {
				log.Printf("[sync] update phase %q failed: %v", t.Reference, err)
				stats.Errors++
				continue
			}
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	s.finishRun(ctx, runID, haveRun, "completed", stats)
	log.Printf("[sync] batch done in %s: fetched=%d created=%d updated=%d unchanged=%d errors=%d",
		time.Since(start).Round(time.Millisecond), stats.Fetched, stats.Created, stats.Updated, stats.Unchanged, stats.Errors)
	return stats, nil
}

func (s *Syncer) startRun(ctx context.Context) (uuid.UUID, bool) {
	if s.Runs == nil {
		return uuid.Nil, false
	}
	id, err := s.Runs.StartSyncRun(ctx)
	if err != nil {
		log.Printf("[sync] failed to create sync run: %v", err)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Syncer) finishRun(ctx context.Context, runID uuid.UUID, haveRun bool, status string, stats SyncStats) {
	if !haveRun {
		return
	}
	if err := s.Runs.FinishSyncRun(ctx, runID, status, stats); err != nil {
		log.Printf("[sync] failed to update sync run: %v", err)
	}
}
