package models

import (
	"time"

	"github.com/google/uuid"
)

// Tender is the canonical, persisted representation of a contracting process.
// Reference is the dedup key; everything except Phase (and UpdatedAt) is
// immutable after first ingestion.
type Tender struct {
	ID                  uuid.UUID              `json:"id"`
	Reference           string                 `json:"reference"`
	Entity              string                 `json:"entity"`
	Description         string                 `json:"description"`
	Object              string                 `json:"object"`
	Modality            string                 `json:"modality"`
	Department          string                 `json:"department"`
	City                string                 `json:"city"`
	BasePrice           *float64               `json:"base_price"`
	PublicationDate     time.Time              `json:"publication_date"`
	ClosingDate         *time.Time             `json:"closing_date"`
	ClassificationCodes []string               `json:"classification_codes"`
	ProcessURL          string                 `json:"process_url"`
	Phase               string                 `json:"phase"`
	RawSnapshot         map[string]interface{} `json:"raw_snapshot,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// InterestProfile is the subscriber-declared matching criteria. Profiles are
// created and edited elsewhere; this core only reads them.
type InterestProfile struct {
	ID          uuid.UUID `json:"id"`
	Subscriber  string    `json:"subscriber"`
	Codes       []string  `json:"codes"`
	Departments []string  `json:"departments"`
	MinValue    float64   `json:"min_value"`
	MaxValue    float64   `json:"max_value"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncRun records one execution of the batch sync for observability.
type SyncRun struct {
	RunID       uuid.UUID  `json:"run_id"`
	Status      string     `json:"status"` // running, completed, failed
	Fetched     int        `json:"fetched"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Errors      int        `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Details     string     `json:"details,omitempty"`
}
