package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camilo/tender-radar/internal/ingest"
	"github.com/camilo/tender-radar/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query       string
	Departments []string
	City        string
	Modality    string
	Phase       string
	MinPrice    float64
	MaxPrice    float64
	Codes       []string // declared interest codes; empty means no code filter
	Limit       int
	Offset      int
	SortBy      string // "newest" (default), "closing", "price"
}

type ListResult struct {
	Tenders []models.Tender `json:"tenders"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// selectCols deliberately omits raw_snapshot: the stored payload is for
// forensics, not for serving.
const selectCols = `id, reference, entity, description, object, modality, department, city,
	base_price, publication_date, closing_date, classification_codes, process_url, phase,
	created_at, updated_at`

func scanTender(scan func(dest ...interface{}) error) (models.Tender, error) {
	var t models.Tender
	var entity, description, object, modality, department, city *string

	err := scan(
		&t.ID, &t.Reference, &entity, &description, &object, &modality, &department, &city,
		&t.BasePrice, &t.PublicationDate, &t.ClosingDate, &t.ClassificationCodes, &t.ProcessURL, &t.Phase,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	if entity != nil {
		t.Entity = *entity
	}
	if description != nil {
		t.Description = *description
	}
	if object != nil {
		t.Object = *object
	}
	if modality != nil {
		t.Modality = *modality
	}
	if department != nil {
		t.Department = *department
	}
	if city != nil {
		t.City = *city
	}
	if t.ClassificationCodes == nil {
		t.ClassificationCodes = []string{}
	}

	return t, nil
}

// FindByReference returns (nil, nil) when no tender carries the reference;
// a non-nil error always means the lookup itself failed.
func (s *Store) FindByReference(ctx context.Context, reference string) (*models.Tender, error) {
	sql := fmt.Sprintf("SELECT %s FROM tenders WHERE reference = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, reference)

	t, err := scanTender(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by reference failed: %w", err)
	}

	return &t, nil
}

func (s *Store) CreateTender(ctx context.Context, t models.Tender) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenders (
			reference, entity, description, object, modality, department, city,
			base_price, publication_date, closing_date, classification_codes,
			process_url, phase, raw_snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		t.Reference, t.Entity, t.Description, t.Object, t.Modality, t.Department, t.City,
		t.BasePrice, t.PublicationDate, t.ClosingDate, t.ClassificationCodes,
		t.ProcessURL, t.Phase, t.RawSnapshot,
	)
	if err != nil {
		return fmt.Errorf("insert tender failed: %w", err)
	}
	return nil
}

// UpdateTenderPhase touches phase and updated_at only; everything else is
// immutable after first ingestion.
func (s *Store) UpdateTenderPhase(ctx context.Context, reference, phase string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE tenders SET phase = $2, updated_at = NOW() WHERE reference = $1",
		reference, phase,
	)
	if err != nil {
		return fmt.Errorf("update phase failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update phase: no tender with reference %q", reference)
	}
	return nil
}

func (s *Store) ListTenders(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	if params.Limit > 200 {
		params.Limit = 200
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	// 1. Build WHERE clause and args
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (reference ILIKE '%%' || $%d || '%%' OR entity ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%' OR object ILIKE '%%' || $%d || '%%')",
			argIdx, argIdx, argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if deps := sanitizeStringSlice(params.Departments); len(deps) > 0 {
		where += fmt.Sprintf(" AND department = ANY($%d)", argIdx)
		args = append(args, deps)
		argIdx++
	}
	if params.City != "" {
		where += fmt.Sprintf(" AND city = $%d", argIdx)
		args = append(args, params.City)
		argIdx++
	}
	if params.Modality != "" {
		where += fmt.Sprintf(" AND modality = $%d", argIdx)
		args = append(args, params.Modality)
		argIdx++
	}
	if params.Phase != "" {
		where += fmt.Sprintf(" AND phase = $%d", argIdx)
		args = append(args, params.Phase)
		argIdx++
	}
	if params.MinPrice > 0 {
		where += fmt.Sprintf(" AND base_price >= $%d", argIdx)
		args = append(args, params.MinPrice)
		argIdx++
	}
	if params.MaxPrice > 0 {
		where += fmt.Sprintf(" AND base_price <= $%d", argIdx)
		args = append(args, params.MaxPrice)
		argIdx++
	}

	if cleaned := sanitizeStringSlice(params.Codes); len(cleaned) > 0 {
		filter, next := BuildInterestFilter(cleaned, argIdx)
		if filter.MatchNone {
			return &ListResult{Tenders: []models.Tender{}, Limit: params.Limit, Offset: params.Offset}, nil
		}
		where += " AND " + filter.Clause
		args = append(args, filter.Args...)
		argIdx = next
	}

	// 2. Count total
	var total int
	countSQL := "SELECT COUNT(*) FROM tenders " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	// 3. Select page
	selectSQL := fmt.Sprintf("SELECT %s FROM tenders %s", selectCols, where)

	switch params.SortBy {
	case "closing":
		selectSQL += " ORDER BY closing_date ASC NULLS LAST, publication_date DESC"
	case "price", "price_desc":
		selectSQL += " ORDER BY base_price DESC NULLS LAST, publication_date DESC"
	default: // "newest"
		selectSQL += " ORDER BY publication_date DESC, created_at DESC"
	}

	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var tenders []models.Tender
	for rows.Next() {
		t, err := scanTender(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if tenders == nil {
		tenders = []models.Tender{}
	}

	return &ListResult{
		Tenders: tenders,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}, nil
}

// GetInterestProfile returns (nil, nil) for an unknown or inactive profile.
func (s *Store) GetInterestProfile(ctx context.Context, id uuid.UUID) (*models.InterestProfile, error) {
	var p models.InterestProfile
	err := s.pool.QueryRow(ctx, `
		SELECT id, subscriber, codes, departments, min_value, max_value, active, created_at, updated_at
		FROM interest_profiles
		WHERE id = $1 AND active = TRUE
	`, id).Scan(&p.ID, &p.Subscriber, &p.Codes, &p.Departments, &p.MinValue, &p.MaxValue, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile failed: %w", err)
	}
	if p.Codes == nil {
		p.Codes = []string{}
	}
	return &p, nil
}

func (s *Store) StartSyncRun(ctx context.Context) (uuid.UUID, error) {
	var runID uuid.UUID
	err := s.pool.QueryRow(ctx,
		"INSERT INTO sync_runs (status) VALUES ('running') RETURNING run_id",
	).Scan(&runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start sync run failed: %w", err)
	}
	return runID, nil
}

func (s *Store) FinishSyncRun(ctx context.Context, runID uuid.UUID, status string, stats ingest.SyncStats) error {
	details, _ := json.Marshal(stats)
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs SET
			status = $2,
			fetched = $3,
			created = $4,
			updated = $5,
			errors = $6,
			completed_at = NOW(),
			details = $7
		WHERE run_id = $1
	`, runID, status, stats.Fetched, stats.Created, stats.Updated, stats.Errors, details)
	if err != nil {
		return fmt.Errorf("finish sync run failed: %w", err)
	}
	return nil
}

func (s *Store) ListSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, status, fetched, created, updated, errors, started_at, completed_at, details
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs failed: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		var details *string
		if err := rows.Scan(&r.RunID, &r.Status, &r.Fetched, &r.Created, &r.Updated, &r.Errors, &r.StartedAt, &r.CompletedAt, &details); err != nil {
			return nil, fmt.Errorf("scan sync run failed: %w", err)
		}
		if details != nil {
			r.Details = *details
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if runs == nil {
		runs = []models.SyncRun{}
	}
	return runs, nil
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders").Scan(&total)
	stats["total"] = total

	var priced int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders WHERE base_price IS NOT NULL").Scan(&priced)
	stats["with_price"] = priced

	var closingSoon int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders WHERE closing_date IS NOT NULL AND closing_date > NOW()").Scan(&closingSoon)
	stats["closing_in_future"] = closingSoon

	phaseCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT phase, COUNT(*) FROM tenders GROUP BY phase")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var phase string
			var count int
			if scanErr := rows.Scan(&phase, &count); scanErr == nil {
				phaseCounts[phase] = count
			}
		}
	}
	stats["phase_counts"] = phaseCounts

	departmentCounts := map[string]int{}
	depRows, err := s.pool.Query(ctx, "SELECT COALESCE(department, ''), COUNT(*) FROM tenders GROUP BY department ORDER BY COUNT(*) DESC LIMIT 15")
	if err == nil {
		defer depRows.Close()
		for depRows.Next() {
			var dep string
			var count int
			if scanErr := depRows.Scan(&dep, &count); scanErr == nil && dep != "" {
				departmentCounts[dep] = count
			}
		}
	}
	stats["top_departments"] = departmentCounts

	if runs, err := s.ListSyncRuns(ctx, 1); err == nil && len(runs) > 0 {
		stats["last_sync_run"] = runs[0]
	}

	return stats, nil
}

func sanitizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return values
	}

	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			clean = append(clean, trimmed)
		}
	}

	return clean
}
