// Package codec defines the feature and target columns of the care model and
// converts catalog records to and from model inputs.
package codec

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/vineetsista/Plant-Care-Assistant/internal/catalog"
	"github.com/vineetsista/Plant-Care-Assistant/preprocessing"
)

// FeatureColumns is the ordered projection fed to the model.
var FeatureColumns = []string{
	catalog.ColFamily,
	catalog.ColCategory,
	catalog.ColOrigin,
	catalog.ColClimate,
}

// TargetColumns is the ordered list of predicted attributes.
var TargetColumns = []string{
	catalog.ColIdealLight,
	catalog.ColWatering,
}

// Watering classes.
const (
	WateringDry     = "dry"
	WateringMoist   = "moist"
	WateringRegular = "regular"
)

// NormalizeWatering maps a free-text watering description to a class.
// "dry" is checked before "moist"; anything else, including a missing
// value, is regular.
func NormalizeWatering(v any) string {
	s := strings.ToLower(cast.ToString(v))
	switch {
	case strings.Contains(s, WateringDry):
		return WateringDry
	case strings.Contains(s, WateringMoist):
		return WateringMoist
	default:
		return WateringRegular
	}
}

// FeatureRow projects a record or free-form mapping onto FeatureColumns.
// Absent or null values become preprocessing.MissingValue.
func FeatureRow(info map[string]any) []string {
	return ProjectRow(info, FeatureColumns)
}

// ProjectRow projects info onto columns in order.
func ProjectRow(info map[string]any, columns []string) []string {
	row := make([]string, len(columns))
	for j, col := range columns {
		row[j] = preprocessing.MissingValue
		v, ok := info[col]
		if !ok || v == nil {
			continue
		}
		if s, err := cast.ToStringE(v); err == nil {
			row[j] = s
		}
	}
	return row
}

// TargetValues returns the target strings of r, normalizing watering.
// ok is false when any target is missing.
func TargetValues(r catalog.Record) (values []string, ok bool) {
	values = make([]string, len(TargetColumns))
	for j, col := range TargetColumns {
		s, present := r.String(col)
		if !present {
			return nil, false
		}
		if col == catalog.ColWatering {
			s = NormalizeWatering(s)
		}
		values[j] = s
	}
	return values, true
}

// Complete reports whether r has every feature and target value.
func Complete(r catalog.Record) bool {
	for _, col := range FeatureColumns {
		if !r.Has(col) {
			return false
		}
	}
	for _, col := range TargetColumns {
		if !r.Has(col) {
			return false
		}
	}
	return true
}
