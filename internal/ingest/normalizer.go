package ingest

import (
	"time"

	"github.com/camilo/tender-radar/internal/models"
)

// Normalize converts one raw upstream record into the canonical Tender shape.
// It is total: every field-level failure degrades that field to its default
// and is reported as a Warning, and the record is still produced. It never
// returns an error and never panics.
//
// A missing or unparsable publication date is substituted with the ingestion
// wall-clock time so the record stays visible in date-sorted views; the
// substitution is reported as a defaulted-field warning.
func Normalize(raw RawRecord) (models.Tender, []Warning) {
	return normalizeAt(raw, time.Now().UTC())
}

func normalizeAt(raw RawRecord, now time.Time) (models.Tender, []Warning) {
	var warnings []Warning
	warn := func(field string, reason FieldReason, rawValue string) {
		warnings = append(warnings, Warning{Field: field, Reason: reason, Raw: rawValue})
	}

	t := models.Tender{RawSnapshot: raw}

	t.Reference, _ = stringField(raw, referenceFields)
	if t.Reference == "" {
		warn("reference", ReasonMissing, "")
	}

	t.Entity, _ = stringField(raw, entityFields)
	t.Object, _ = stringField(raw, objectFields)
	t.Modality, _ = stringField(raw, modalityFields)
	t.Department, _ = stringField(raw, departmentFields)
	t.City, _ = stringField(raw, cityFields)
	t.Phase, _ = stringField(raw, phaseFields)

	if desc, reason := stringField(raw, descriptionFields); reason == ReasonOK {
		t.Description = cleanText(sanitizeUTF8(HTMLToText(sanitizeHTML(desc))))
	}

	price, priceReason, priceRaw := parsePrice(raw, priceFields)
	t.BasePrice = price
	if priceReason == ReasonUnparsable {
		warn("base_price", priceReason, priceRaw)
	}

	pub, pubReason, pubRaw := dateField(raw, publicationDateFields)
	if pubReason == ReasonOK {
		t.PublicationDate = pub
	} else {
		t.PublicationDate = now
		warn("publication_date", ReasonDefaulted, pubRaw)
	}

	if closing, reason, closingRaw := dateField(raw, closingDateFields); reason == ReasonOK {
		t.ClosingDate = &closing
	} else if reason == ReasonUnparsable {
		warn("closing_date", reason, closingRaw)
	}

	codes, codesReason := codesField(raw)
	t.ClassificationCodes = codes
	if codesReason != ReasonOK {
		warn("classification_codes", codesReason, "")
	}

	url, urlReason := urlField(raw, urlFields)
	t.ProcessURL = url
	if urlReason == ReasonUnparsable {
		warn("process_url", urlReason, "")
	}

	return t, warnings
}
