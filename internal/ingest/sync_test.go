package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camilo/tender-radar/internal/models"
)

type fakeFetcher struct {
	tenders []models.Tender
}

func (f *fakeFetcher) FetchOpportunities(ctx context.Context, declaredCodes []string) []models.Tender {
	return f.tenders
}

type fakeStore struct {
	tenders   map[string]models.Tender
	findErr   error
	createErr map[string]error
	updateErr map[string]error
	creates   int
	updates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenders:   make(map[string]models.Tender),
		createErr: make(map[string]error),
		updateErr: make(map[string]error),
	}
}

func (s *fakeStore) FindByReference(ctx context.Context, reference string) (*models.Tender, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	t, ok := s.tenders[reference]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *fakeStore) CreateTender(ctx context.Context, t models.Tender) error {
	if err := s.createErr[t.Reference]; err != nil {
		return err
	}
	s.tenders[t.Reference] = t
	s.creates++
	return nil
}

func (s *fakeStore) UpdateTenderPhase(ctx context.Context, reference, phase string) error {
	if err := s.updateErr[reference]; err != nil {
		return err
	}
	t := s.tenders[reference]
	t.Phase = phase
	s.tenders[reference] = t
	s.updates++
	return nil
}

func tender(reference, phase string) models.Tender {
	return models.Tender{
		Reference:       reference,
		Phase:           phase,
		PublicationDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSyncBatchCreatesNewTenders(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{tenders: []models.Tender{
		tender("A-1", "Publicado"),
		tender("A-2", "Publicado"),
	}}

	stats, err := NewSyncer(fetcher, store, nil).SyncBatch(context.Background())
	if err != nil {
		t.Fatalf("SyncBatch returned error: %v", err)
	}

	if stats.Fetched != 2 || stats.Created != 2 || stats.Updated != 0 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 2 fetched, 2 created", stats)
	}
	if len(store.tenders) != 2 {
		t.Errorf("store holds %d tenders, want 2", len(store.tenders))
	}
}

func TestSyncBatchIsIdempotent(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{tenders: []models.Tender{
		tender("A-1", "Publicado"),
		tender("A-2", "Publicado"),
	}}
	syncer := NewSyncer(fetcher, store, nil)

	if _, err := syncer.SyncBatch(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	stats, err := syncer.SyncBatch(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if stats.Created != 0 || stats.Updated != 0 {
		t.Errorf("second run must be a no-op, got created=%d updated=%d", stats.Created, stats.Updated)
	}
	if stats.Unchanged != 2 {
		t.Errorf("Unchanged = %d, want 2", stats.Unchanged)
	}
}

func TestSyncBatchUpdatesPhaseOnly(t *testing.T) {
	store := newFakeStore()
	existing := tender("A-1", "Publicado")
	existing.Entity = "Alcaldía de Pasto"
	store.tenders["A-1"] = existing

	fetched := tender("A-1", "Evaluación")
	fetched.Entity = "Nombre Cambiado Upstream"
	fetcher := &fakeFetcher{tenders: []models.Tender{fetched}}

	stats, err := NewSyncer(fetcher, store, nil).SyncBatch(context.Background())
	if err != nil {
		t.Fatalf("SyncBatch returned error: %v", err)
	}

	if stats.Updated != 1 || stats.Created != 0 {
		t.Errorf("stats = %+v, want exactly one update", stats)
	}
	got := store.tenders["A-1"]
	if got.Phase != "Evaluación" {
		t.Errorf("Phase = %q, want Evaluación", got.Phase)
	}
	if got.Entity != "Alcaldía de Pasto" {
		t.Errorf("Entity was rewritten to %q; non-phase fields are immutable", got.Entity)
	}
}

func TestSyncBatchToleratesPerRecordFailures(t *testing.T) {
	store := newFakeStore()
	store.createErr["A-2"] = errors.New("insert deadlock")

	fetcher := &fakeFetcher{tenders: []models.Tender{
		tender("A-1", "Publicado"),
		tender("A-2", "Publicado"),
		tender("A-3", "Publicado"),
	}}

	stats, err := NewSyncer(fetcher, store, nil).SyncBatch(context.Background())
	if err != nil {
		t.Fatalf("a per-record failure must not fail the batch: %v", err)
	}

	if stats.Created != 2 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want 2 created and 1 error", stats)
	}
	if _, ok := store.tenders["A-3"]; !ok {
		t.Error("records after the failed one must still be processed")
	}
}

func TestSyncBatchLookupFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("connection refused")

	fetcher := &fakeFetcher{tenders: []models.Tender{tender("A-1", "Publicado")}}

	_, err := NewSyncer(fetcher, store, nil).SyncBatch(context.Background())
	if err == nil {
		t.Fatal("a store lookup failure must abort the batch")
	}
}

func TestSyncBatchDeduplicatesByReference(t *testing.T) {
	// The same reference appearing twice in one page takes the later phase.
	store := newFakeStore()
	fetcher := &fakeFetcher{tenders: []models.Tender{
		tender("A-1", "Publicado"),
		tender("A-1", "Evaluación"),
	}}

	stats, err := NewSyncer(fetcher, store, nil).SyncBatch(context.Background())
	if err != nil {
		t.Fatalf("SyncBatch returned error: %v", err)
	}

	if stats.Created != 1 || stats.Updated != 1 {
		t.Errorf("stats = %+v, want 1 created and 1 phase update", stats)
	}
	if got := store.tenders["A-1"].Phase; got != "Evaluación" {
		t.Errorf("Phase = %q, want the later value", got)
	}
}

func TestSyncBatchEmptyFeed(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{tenders: nil}

	stats, err := NewSyncer(fetcher, store, nil).SyncBatch(context.Background())
	if err != nil {
		t.Fatalf("SyncBatch returned error: %v", err)
	}
	if stats.Fetched != 0 || stats.Created != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}
}
