package codec

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/preprocessing"
)

// Vocabularies holds one fitted LabelEncoder per target, in TargetColumns order.
type Vocabularies struct {
	targets  []string
	encoders map[string]*preprocessing.LabelEncoder
}

// FitVocabularies fits one encoder per target from column-major values.
// columns[j] holds every value of targets[j].
func FitVocabularies(targets []string, columns [][]string) (*Vocabularies, error) {
	if len(targets) != len(columns) {
		return nil, errors.NewDimensionError("FitVocabularies", len(targets), len(columns), 1)
	}
	v := &Vocabularies{
		targets:  append([]string(nil), targets...),
		encoders: make(map[string]*preprocessing.LabelEncoder, len(targets)),
	}
	for j, target := range targets {
		enc := preprocessing.NewLabelEncoder()
		if err := enc.Fit(columns[j]); err != nil {
			return nil, errors.Wrapf(err, "target %s", target)
		}
		v.encoders[target] = enc
	}
	return v, nil
}

// Targets returns the target names in order.
func (v *Vocabularies) Targets() []string {
	return append([]string(nil), v.targets...)
}

// Encoder returns the encoder of target.
func (v *Vocabularies) Encoder(target string) (*preprocessing.LabelEncoder, bool) {
	enc, ok := v.encoders[target]
	return enc, ok
}

// EncodeRow encodes one value per target.
func (v *Vocabularies) EncodeRow(values []string) ([]int, error) {
	if len(values) != len(v.targets) {
		return nil, errors.NewDimensionError("Vocabularies.EncodeRow", len(v.targets), len(values), 1)
	}
	codes := make([]int, len(values))
	for j, target := range v.targets {
		code, err := v.encoders[target].Encode(values[j])
		if err != nil {
			return nil, err
		}
		codes[j] = code
	}
	return codes, nil
}

// DecodeRow decodes one code per target.
func (v *Vocabularies) DecodeRow(codes []int) ([]string, error) {
	if len(codes) != len(v.targets) {
		return nil, errors.NewDimensionError("Vocabularies.DecodeRow", len(v.targets), len(codes), 1)
	}
	labels := make([]string, len(codes))
	for j, target := range v.targets {
		label, err := v.encoders[target].Decode(codes[j])
		if err != nil {
			return nil, err
		}
		labels[j] = label
	}
	return labels, nil
}

type vocabularyEntry struct {
	Target  string                      `json:"target"`
	Encoder *preprocessing.LabelEncoder `json:"encoder"`
}

// MarshalJSON writes the targets as an ordered array.
func (v *Vocabularies) MarshalJSON() ([]byte, error) {
	entries := make([]vocabularyEntry, len(v.targets))
	for j, target := range v.targets {
		entries[j] = vocabularyEntry{Target: target, Encoder: v.encoders[target]}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON restores vocabularies written by MarshalJSON.
func (v *Vocabularies) UnmarshalJSON(data []byte) error {
	var entries []vocabularyEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return errors.Wrap(err, "Vocabularies.UnmarshalJSON")
	}
	if len(entries) == 0 {
		return errors.NewValueError("Vocabularies.UnmarshalJSON", "no targets")
	}
	v.targets = make([]string, len(entries))
	v.encoders = make(map[string]*preprocessing.LabelEncoder, len(entries))
	for j, e := range entries {
		if e.Encoder == nil {
			return errors.NewValueError("Vocabularies.UnmarshalJSON", "target "+e.Target+" has no encoder")
		}
		if _, dup := v.encoders[e.Target]; dup {
			return errors.NewValueError("Vocabularies.UnmarshalJSON", "duplicate target "+e.Target)
		}
		v.targets[j] = e.Target
		v.encoders[e.Target] = e.Encoder
	}
	return nil
}
