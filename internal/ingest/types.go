package ingest

import (
	"context"

	"github.com/camilo/tender-radar/internal/models"
	"github.com/google/uuid"
)

// RawRecord is one untyped record as returned by the upstream open-data API.
// Field names are long, Spanish, and not guaranteed present; values may be
// strings, numbers or nested objects.
type RawRecord map[string]interface{}

// Fetcher retrieves already-normalized tenders from the upstream API.
// Implementations must absorb transient upstream failures and return an empty
// slice instead of an error; "no opportunities now" is the recovery contract,
// with the next scheduled run as the retry.
type Fetcher interface {
	FetchOpportunities(ctx context.Context, declaredCodes []string) []models.Tender
}

// TenderStore is the persistence surface the sync orchestrator needs.
// FindByReference returns (nil, nil) when the reference is unknown.
type TenderStore interface {
	FindByReference(ctx context.Context, reference string) (*models.Tender, error)
	CreateTender(ctx context.Context, t models.Tender) error
	UpdateTenderPhase(ctx context.Context, reference, phase string) error
}

// RunRecorder persists per-batch observability rows. Optional: a nil recorder
// disables run accounting without affecting the sync itself.
type RunRecorder interface {
	StartSyncRun(ctx context.Context) (uuid.UUID, error)
	FinishSyncRun(ctx context.Context, runID uuid.UUID, status string, stats SyncStats) error
}

// SyncStats holds the counts of one batch run.
type SyncStats struct {
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}
