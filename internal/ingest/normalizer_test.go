package ingest

import (
	"testing"
	"time"
)

func hasWarning(warnings []Warning, field string, reason FieldReason) bool {
	for _, w := range warnings {
		if w.Field == field && w.Reason == reason {
			return true
		}
	}
	return false
}

func TestNormalizeDegradedRecord(t *testing.T) {
	// A record with a null publication date and a wrapped URL must still come
	// out whole, with the date substituted and reported.
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	raw := RawRecord{
		"referencia_del_proceso":        "ABC-1",
		"fase":                          "Publicado",
		"fecha_de_publicacion_del":      nil,
		"codigo_principal_de_categoria": "V1.43230000",
		"urlproceso":                    map[string]interface{}{"url": "http://example.com/p/ABC-1"},
	}

	tender, warnings := normalizeAt(raw, now)

	if tender.Reference != "ABC-1" {
		t.Errorf("Reference = %q, want ABC-1", tender.Reference)
	}
	if tender.Phase != "Publicado" {
		t.Errorf("Phase = %q, want Publicado", tender.Phase)
	}
	if !tender.PublicationDate.Equal(now) {
		t.Errorf("PublicationDate = %v, want substituted %v", tender.PublicationDate, now)
	}
	if !hasWarning(warnings, "publication_date", ReasonDefaulted) {
		t.Errorf("expected a defaulted publication_date warning, got %v", warnings)
	}
	if len(tender.ClassificationCodes) != 1 || tender.ClassificationCodes[0] != "V1.43230000" {
		t.Errorf("ClassificationCodes = %v, want [V1.43230000]", tender.ClassificationCodes)
	}
	if tender.ProcessURL != "http://example.com/p/ABC-1" {
		t.Errorf("ProcessURL = %q, want unwrapped URL", tender.ProcessURL)
	}
}

func TestNormalizeEmptyRecord(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tender, warnings := normalizeAt(RawRecord{}, now)

	if tender.Reference != "" {
		t.Errorf("Reference = %q, want empty", tender.Reference)
	}
	if !hasWarning(warnings, "reference", ReasonMissing) {
		t.Errorf("expected a missing reference warning, got %v", warnings)
	}
	if !hasWarning(warnings, "publication_date", ReasonDefaulted) {
		t.Errorf("expected a defaulted publication_date warning, got %v", warnings)
	}
	if !hasWarning(warnings, "classification_codes", ReasonMissing) {
		t.Errorf("expected a missing classification_codes warning, got %v", warnings)
	}
	if tender.BasePrice != nil {
		t.Errorf("BasePrice = %v, want nil for an absent price", *tender.BasePrice)
	}
	if tender.ClosingDate != nil {
		t.Errorf("ClosingDate = %v, want nil", tender.ClosingDate)
	}
}

func TestNormalizeURLShapes(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		value   interface{}
		wantURL string
		warned  bool
	}{
		{"plain string", "http://example.com/p/1", "http://example.com/p/1", false},
		{"wrapped object", map[string]interface{}{"url": "http://example.com/p/2"}, "http://example.com/p/2", false},
		{"object without url key", map[string]interface{}{"href": "x"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawRecord{"referencia_del_proceso": "R-1", "urlproceso": tt.value}
			tender, warnings := normalizeAt(raw, now)

			if tender.ProcessURL != tt.wantURL {
				t.Errorf("ProcessURL = %q, want %q", tender.ProcessURL, tt.wantURL)
			}
			if got := hasWarning(warnings, "process_url", ReasonUnparsable); got != tt.warned {
				t.Errorf("unparsable warning = %v, want %v", got, tt.warned)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name   string
		value  interface{}
		want   *float64
		warned bool
	}{
		{"numeric string", "250000000", ptr(250000000.0), false},
		{"currency noise", "$1,500,000.50", ptr(1500000.50), false},
		{"json number", 42.5, ptr(42.5), false},
		{"zero is a real price", "0", ptr(0.0), false},
		{"garbage", "no disponible", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawRecord{"referencia_del_proceso": "R-1", "precio_base": tt.value}
			tender, warnings := normalizeAt(raw, now)

			switch {
			case tt.want == nil && tender.BasePrice != nil:
				t.Errorf("BasePrice = %v, want nil", *tender.BasePrice)
			case tt.want != nil && tender.BasePrice == nil:
				t.Errorf("BasePrice = nil, want %v", *tt.want)
			case tt.want != nil && *tender.BasePrice != *tt.want:
				t.Errorf("BasePrice = %v, want %v", *tender.BasePrice, *tt.want)
			}
			if got := hasWarning(warnings, "base_price", ReasonUnparsable); got != tt.warned {
				t.Errorf("unparsable warning = %v, want %v", got, tt.warned)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestNormalizeDescriptionCleansHTML(t *testing.T) {
	raw := RawRecord{
		"referencia_del_proceso":        "R-1",
		"descripci_n_del_procedimiento": "<p>Mantenimiento   de <b>vías</b> terciarias</p><script>alert(1)</script>",
	}

	tender, _ := normalizeAt(raw, time.Now().UTC())

	if tender.Description != "Mantenimiento de vías terciarias" {
		t.Errorf("Description = %q, want markup stripped and whitespace collapsed", tender.Description)
	}
}

func TestNormalizeAdditionalCodes(t *testing.T) {
	raw := RawRecord{
		"referencia_del_proceso":           "R-1",
		"codigo_principal_de_categoria":    "V1.43230000",
		"codigos_adicionales_de_categoria": "80101500, V1.43230000 ,81112200",
	}

	tender, _ := normalizeAt(raw, time.Now().UTC())

	want := []string{"V1.43230000", "80101500", "81112200"}
	if len(tender.ClassificationCodes) != len(want) {
		t.Fatalf("ClassificationCodes = %v, want %v", tender.ClassificationCodes, want)
	}
	for i, code := range want {
		if tender.ClassificationCodes[i] != code {
			t.Errorf("ClassificationCodes[%d] = %q, want %q", i, tender.ClassificationCodes[i], code)
		}
	}
}

func TestNormalizeClosingDate(t *testing.T) {
	now := time.Now().UTC()
	raw := RawRecord{
		"referencia_del_proceso": "R-1",
		"fecha_de_recepcion_de":  "2026-04-01T17:00:00.000",
	}

	tender, _ := normalizeAt(raw, now)

	if tender.ClosingDate == nil {
		t.Fatal("ClosingDate = nil, want parsed value")
	}
	want := time.Date(2026, 4, 1, 17, 0, 0, 0, time.UTC)
	if !tender.ClosingDate.Equal(want) {
		t.Errorf("ClosingDate = %v, want %v", tender.ClosingDate, want)
	}
}

func TestParseUpstreamDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2026-03-10T08:30:00.000", time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), true},
		{"2026-03-10T08:30:00", time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), true},
		{"2026-03-10", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"10/03/2026", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"pronto", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, err := parseUpstreamDate(tt.input)
		if tt.ok != (err == nil) {
			t.Errorf("parseUpstreamDate(%q) err = %v, want ok=%v", tt.input, err, tt.ok)
			continue
		}
		if tt.ok && !got.Equal(tt.want) {
			t.Errorf("parseUpstreamDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
