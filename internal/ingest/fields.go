package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Each semantic field of a Tender is read from a small ordered list of
// candidate upstream field names, tried in priority order. The upstream
// dataset has renamed and duplicated columns over time, so a single name is
// not reliable.
var (
	referenceFields   = []string{"referencia_del_proceso", "id_del_proceso"}
	entityFields      = []string{"entidad", "nombre_de_la_entidad"}
	descriptionFields = []string{"descripci_n_del_procedimiento", "descripcion_del_procedimiento"}
	objectFields      = []string{"tipo_de_contrato", "objeto_del_contrato"}
	modalityFields    = []string{"modalidad_de_contratacion", "modalidad_de_contrataci_n"}
	departmentFields  = []string{"departamento_entidad", "departamento"}
	cityFields        = []string{"ciudad_entidad", "ciudad_de_la_unidad_de"}
	priceFields       = []string{"precio_base", "valor_total_adjudicacion"}
	codeFields        = []string{"codigo_principal_de_categoria", "codigo_de_categoria_principal"}
	urlFields         = []string{"urlproceso", "url_del_proceso"}
	phaseFields       = []string{"fase", "estado_del_procedimiento"}

	publicationDateFields = []string{"fecha_de_publicacion_del", "fecha_de_ultima_publicaci", "fecha_de_publicacion"}
	closingDateFields     = []string{"fecha_de_recepcion_de", "fecha_de_cierre"}
)

// FieldReason explains why a conversion produced the value it did, so
// diagnostics (and tests) can assert the cause of a default instead of just
// the output.
type FieldReason string

const (
	ReasonOK         FieldReason = "ok"
	ReasonMissing    FieldReason = "missing"
	ReasonUnparsable FieldReason = "unparsable"
	ReasonDefaulted  FieldReason = "defaulted"
)

// Warning is a per-field diagnostic emitted during normalization. It never
// fails the record; the record is ingested with the degraded field.
type Warning struct {
	Field  string
	Reason FieldReason
	Raw    string
}

func (w Warning) String() string {
	if w.Raw == "" {
		return fmt.Sprintf("%s %s", w.Field, w.Reason)
	}
	return fmt.Sprintf("%s %s (raw=%q)", w.Field, w.Reason, w.Raw)
}

// stringField returns the first candidate field that holds a non-empty
// string-ish value. Numbers are formatted; nested objects are skipped.
func stringField(raw RawRecord, candidates []string) (string, FieldReason) {
	for _, name := range candidates {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		switch typed := v.(type) {
		case string:
			if s := strings.TrimSpace(typed); s != "" {
				return s, ReasonOK
			}
		case float64:
			return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", typed), "0"), "."), ReasonOK
		case bool:
			return fmt.Sprintf("%t", typed), ReasonOK
		}
	}
	return "", ReasonMissing
}

// urlField unwraps the process URL, which arrives either as a plain string or
// as an object of the shape {"url": "..."}.
func urlField(raw RawRecord, candidates []string) (string, FieldReason) {
	for _, name := range candidates {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		switch typed := v.(type) {
		case string:
			if s := strings.TrimSpace(typed); s != "" {
				return s, ReasonOK
			}
		case map[string]interface{}:
			if inner, ok := typed["url"].(string); ok {
				if s := strings.TrimSpace(inner); s != "" {
					return s, ReasonOK
				}
			}
			return "", ReasonUnparsable
		}
	}
	return "", ReasonMissing
}

// dateField returns the first candidate field that parses to a valid instant.
// Raw holds the last non-empty value seen so an unparsable date can be
// reported with its original text.
func dateField(raw RawRecord, candidates []string) (time.Time, FieldReason, string) {
	lastRaw := ""
	for _, name := range candidates {
		s, reason := stringField(raw, []string{name})
		if reason != ReasonOK {
			continue
		}
		lastRaw = s
		if t, err := parseUpstreamDate(s); err == nil {
			return t, ReasonOK, s
		}
	}
	if lastRaw == "" {
		return time.Time{}, ReasonMissing, ""
	}
	return time.Time{}, ReasonUnparsable, lastRaw
}

// codesField collects the classification codes into an ordered set. The
// current dataset exposes a single primary code; additional codes, when
// present, arrive as a comma-separated list.
func codesField(raw RawRecord) ([]string, FieldReason) {
	primary, reason := stringField(raw, codeFields)
	var codes []string
	if reason == ReasonOK {
		codes = appendUnique(codes, primary)
	}
	if extra, ok := stringField(raw, []string{"codigos_adicionales_de_categoria"}); ok == ReasonOK {
		for _, c := range strings.Split(extra, ",") {
			codes = appendUnique(codes, c)
		}
	}
	if len(codes) == 0 {
		return nil, ReasonMissing
	}
	return codes, ReasonOK
}
