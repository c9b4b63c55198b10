package ingest

import (
	"strconv"
	"strings"
)

// parsePrice coerces the upstream base price into a float. The value arrives
// as a string ("250000000"), occasionally with currency noise, or already as
// a number. A nil result means "unknown"; zero is a real price and is never
// substituted for unparsable input.
func parsePrice(raw RawRecord, candidates []string) (*float64, FieldReason, string) {
	for _, name := range candidates {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		switch typed := v.(type) {
		case float64:
			val := typed
			return &val, ReasonOK, ""
		case string:
			s := strings.TrimSpace(typed)
			if s == "" {
				continue
			}
			clean := strings.ReplaceAll(s, "$", "")
			clean = strings.ReplaceAll(clean, ",", "")
			clean = strings.TrimSpace(clean)
			if val, err := strconv.ParseFloat(clean, 64); err == nil {
				return &val, ReasonOK, ""
			}
			return nil, ReasonUnparsable, s
		}
	}
	return nil, ReasonMissing, ""
}
