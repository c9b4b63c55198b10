package ingest

import (
	"fmt"
	"strings"
	"time"
)

// upstreamDateFormats covers the timestamp shapes the open-data API has been
// observed to emit: Socrata floating timestamps (with and without
// milliseconds), RFC3339, and plain dates.
var upstreamDateFormats = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006", // legacy exports
}

// parseUpstreamDate parses a single upstream date string. Socrata floating
// timestamps carry no zone; they are taken as UTC, which is how the dataset
// publishes them.
func parseUpstreamDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, format := range upstreamDateFormats {
		if t, err := time.Parse(format, text); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}
