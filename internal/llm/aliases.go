package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// readingAliases maps each canonical field to its known spellings, in priority order.
// Keys are compared after normalizeKey.
var readingAliases = []struct {
	field   string
	aliases []string
}{
	{"parameter_name", []string{"parameter_name", "parameter", "parametro", "name", "analyte", "analita", "prova", "test"}},
	{"result_text", []string{"result_text", "result", "risultato", "value", "valore", "esito", "outcome"}},
	{"unit_text", []string{"unit_text", "unit", "units", "unita", "unità", "unita_di_misura", "unità_di_misura", "um", "u_m", "uom"}},
	{"method_text", []string{"method_text", "method", "metodo", "metodo_di_prova", "method_reference", "riferimento_metodo"}},
}

// wrapper keys some models put around the record list
var listKeys = []string{"parameters", "parametri", "readings", "results", "risultati", "records", "data"}

var errNoRecords = errors.New("no parameter records in reply")

// NormalizeReadingRecords turns a model reply (array, wrapped array or single
// object) into canonical readings: known aliases are renamed, unknown keys are
// dropped, scalars become strings and all-empty records are removed.
// The second return lists dropped keys for logging.
func NormalizeReadingRecords(raw string, logger *slog.Logger) ([]entity.ParameterReading, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	records, err := decodeRecordList(raw)
	if err != nil {
		return nil, nil, err
	}

	dropped := make([]string, 0, 4)
	canonical := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		byKey := make(map[string]any, len(rec))
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			byKey[normalizeKey(k)] = rec[k]
		}

		known := make(map[string]bool, len(byKey))
		out := make(map[string]string, len(readingAliases))
		for _, a := range readingAliases {
			for _, alias := range a.aliases {
				v, ok := byKey[alias]
				if !ok {
					continue
				}
				known[alias] = true
				if s, ok := scalarString(v); ok && s != "" && out[a.field] == "" {
					out[a.field] = s
				}
			}
			if _, ok := out[a.field]; !ok {
				out[a.field] = ""
			}
		}
		for k := range byKey {
			if !known[k] {
				dropped = append(dropped, k+"(unknown)")
			}
		}
		canonical = append(canonical, out)
	}

	b, err := json.Marshal(canonical)
	if err != nil {
		return nil, dropped, fmt.Errorf("normalize readings: encode: %w", err)
	}
	if err := ValidateJSONAgainstSchema(ReadingsJSONSchema(), b); err != nil {
		return nil, dropped, err
	}
	var readings []entity.ParameterReading
	if err := json.Unmarshal(b, &readings); err != nil {
		return nil, dropped, fmt.Errorf("normalize readings: decode: %w", err)
	}

	kept := readings[:0]
	for _, r := range readings {
		if r.Empty() {
			continue
		}
		kept = append(kept, r)
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		logger.Warn("llm.readings.normalize", "dropped", dropped)
	}
	return kept, dropped, nil
}

func decodeRecordList(raw string) ([]map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errNoRecords
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("normalize readings: decode: %w", err)
	}
	switch t := v.(type) {
	case []any:
		return objectsOf(t), nil
	case map[string]any:
		for _, k := range listKeys {
			for key, val := range t {
				if normalizeKey(key) != k {
					continue
				}
				if arr, ok := val.([]any); ok {
					return objectsOf(arr), nil
				}
			}
		}
		return []map[string]any{t}, nil
	default:
		return nil, errNoRecords
	}
}

func objectsOf(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", ".", "_", "-", "_", "/", "_").Replace(k)
	for strings.Contains(k, "__") {
		k = strings.ReplaceAll(k, "__", "_")
	}
	return strings.Trim(k, "_")
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
