package catalog

import (
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Column names used across the catalog, training and inference code.
const (
	ColCommon         = "common"
	ColFamily         = "family"
	ColCategory       = "category"
	ColOrigin         = "origin"
	ColClimate        = "climate"
	ColIdealLight     = "ideallight"
	ColToleratedLight = "toleratedlight"
	ColWatering       = "watering"
	ColUse            = "use"
	ColInsects        = "insects"
	ColDiseases       = "diseases"

	ColTempMinCelsius    = "tempmin.celsius"
	ColTempMinFahrenheit = "tempmin.fahrenheit"
	ColTempMaxCelsius    = "tempmax.celsius"
	ColTempMaxFahrenheit = "tempmax.fahrenheit"
)

// ListFields are rendered as ", "-joined strings and default to "" when absent.
var ListFields = []string{ColCommon, ColInsects, ColUse, ColDiseases}

const listSeparator = ", "

// Record is one flattened plant. Nested objects use dotted keys
// ("tempmin.celsius"). A scalar that is absent or null has no key.
type Record map[string]any

// DisplayName is the first entry of the common-name list.
func (r Record) DisplayName() string {
	common, _ := r.String(ColCommon)
	name, _, _ := strings.Cut(common, listSeparator)
	return strings.TrimSpace(name)
}

// String returns the value of key coerced to a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Float returns the numeric value of key.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// flatten copies obj into out, joining nested keys with ".".
func flatten(prefix string, obj map[string]any, out Record) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case nil:
		case map[string]any:
			flatten(key, x, out)
		case []any:
			out[key] = joinList(x)
		default:
			out[key] = x
		}
	}
}

func joinList(items []any) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, cast.ToString(item))
	}
	return strings.Join(parts, listSeparator)
}

// normalizeListFields makes every list field a string; falsy values become "".
func normalizeListFields(r Record) {
	for _, col := range ListFields {
		v, ok := r[col]
		if !ok || v == nil {
			r[col] = ""
			continue
		}
		switch x := v.(type) {
		case string:
		case bool:
			if !x {
				r[col] = ""
			}
		case float64:
			if x == 0 {
				r[col] = ""
			}
		}
	}
}
