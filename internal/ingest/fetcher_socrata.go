package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/camilo/tender-radar/internal/models"
	"github.com/camilo/tender-radar/internal/unspsc"
)

// SocrataFetcher queries the upstream open-data dataset with SoQL filters
// pushed into the request ($where/$limit/$order) and normalizes the response.
//
// Failure policy: any transport error, timeout or non-200 response is logged
// and surfaced as an empty result. Callers must treat an empty slice as
// "no opportunities right now", never as proof of absence; the next scheduled
// run is the retry mechanism.
type SocrataFetcher struct {
	Client *http.Client
	Config *SourceConfig

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// cacheEntry keeps one fetched, normalized page keyed by its effective $where
// expression. The page is stored unfiltered: interest matching depends on the
// declared codes of each call, not on $where, and is applied after retrieval.
// Staleness within the TTL window is acceptable; population is
// last-writer-wins.
type cacheEntry struct {
	tenders   []models.Tender
	fetchedAt time.Time
}

func NewSocrataFetcher(cfg *SourceConfig) *SocrataFetcher {
	return &SocrataFetcher{
		Client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		Config: cfg,
		cache:  make(map[string]cacheEntry),
	}
}

// soqlQuote wraps a value in SoQL single quotes, doubling embedded quotes.
func soqlQuote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func soqlIn(field string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, soqlQuote(v))
	}
	return fmt.Sprintf("%s in(%s)", field, strings.Join(quoted, ","))
}

// buildWhere assembles the server-side filter: phase must be one of the
// configured open-for-submission values, and, when only specific codes are
// declared, the primary category code must be in the expanded set
// {code, "V1."+code}. SoQL has no prefix operator, so family codes cannot be
// filtered remotely: as soon as one family code is declared the category
// clause is omitted and matching happens entirely in-process, which keeps
// family subscriptions from being silently under-returned.
func (f *SocrataFetcher) buildWhere(declaredCodes []string) string {
	clauses := []string{soqlIn("fase", f.Config.OpenPhases)}

	specifics, families := unspsc.Partition(declaredCodes)
	if len(specifics) > 0 && len(families) == 0 {
		var expanded []string
		for _, code := range specifics {
			expanded = append(expanded, unspsc.Expand(code)...)
		}
		clauses = append(clauses, soqlIn("codigo_principal_de_categoria", expanded))
	}

	return strings.Join(clauses, " AND ")
}

// FetchOpportunities fetches one bounded page of open tenders matching the
// declared codes, newest publications first. See the failure policy on the
// type doc.
func (f *SocrataFetcher) FetchOpportunities(ctx context.Context, declaredCodes []string) []models.Tender {
	where := f.buildWhere(declaredCodes)

	page, ok := f.cached(where)
	if !ok {
		records, err := f.fetchPage(ctx, where)
		if err != nil {
			log.Printf("[socrata] fetch failed (where=%q): %v", where, err)
			return nil
		}

		page = make([]models.Tender, 0, len(records))
		for _, raw := range records {
			t, warnings := Normalize(raw)
			for _, w := range warnings {
				log.Printf("[socrata] record %q: %s", t.Reference, w)
			}
			if t.Reference == "" {
				continue
			}
			page = append(page, t)
		}

		f.store(where, page)
	}

	if len(declaredCodes) == 0 {
		return page
	}

	// Family semantics are applied here; the remote filter only covers exact
	// codes, and distinct declared sets can share a cached page.
	matched := make([]models.Tender, 0, len(page))
	for _, t := range page {
		if unspsc.Matches(t.ClassificationCodes, declaredCodes) {
			matched = append(matched, t)
		}
	}
	return matched
}

func (f *SocrataFetcher) fetchPage(ctx context.Context, where string) ([]RawRecord, error) {
	q := url.Values{}
	q.Set("$where", where)
	q.Set("$limit", fmt.Sprintf("%d", f.Config.PageSize))
	q.Set("$order", "fecha_de_publicacion_del DESC")

	req, err := http.NewRequestWithContext(ctx, "GET", f.Config.DatasetURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.Config.AppToken != "" {
		req.Header.Set("X-App-Token", f.Config.AppToken)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var records []RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return records, nil
}

func (f *SocrataFetcher) cached(where string) ([]models.Tender, bool) {
	ttl := time.Duration(f.Config.CacheTTLMinutes) * time.Minute

	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[where]
	if !ok || time.Since(entry.fetchedAt) > ttl {
		return nil, false
	}
	return entry.tenders, true
}

func (f *SocrataFetcher) store(where string, tenders []models.Tender) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[where] = cacheEntry{tenders: tenders, fetchedAt: time.Now()}
}
