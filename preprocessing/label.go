package preprocessing

import (
	"sort"

	"github.com/goccy/go-json"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

// LabelEncoder maps the distinct values of a target column to integer
// codes 0..k-1 in sorted order. It is immutable once fitted.
type LabelEncoder struct {
	state *model.StateManager

	classes []string
	index   map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はラベルの語彙を学習する
func (e *LabelEncoder) Fit(values []string) error {
	if e.state.IsFitted() {
		return errors.NewValueError("LabelEncoder.Fit", "vocabulary is immutable once fitted")
	}
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e.setClasses(classes)
	e.state.SetDimensions(1, len(values))
	e.state.SetFitted()
	return nil
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
}

// Encode returns the code of value.
func (e *LabelEncoder) Encode(value string) (int, error) {
	if !e.state.IsFitted() {
		return 0, errors.NewNotFittedError("LabelEncoder", "Encode")
	}
	code, ok := e.index[value]
	if !ok {
		return 0, errors.NewUnknownLabelError(value)
	}
	return code, nil
}

// Decode returns the label for code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if !e.state.IsFitted() {
		return "", errors.NewNotFittedError("LabelEncoder", "Decode")
	}
	if code < 0 || code >= len(e.classes) {
		return "", errors.NewInvalidCodeError(code, len(e.classes))
	}
	return e.classes[code], nil
}

// Transform encodes a slice of labels.
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	codes := make([]int, len(values))
	for i, v := range values {
		code, err := e.Encode(v)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform は学習と変換を同時に実行する
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// InverseTransform decodes a slice of codes.
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	labels := make([]string, len(codes))
	for i, c := range codes {
		label, err := e.Decode(c)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}

// Classes returns a copy of the vocabulary in code order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Len returns the vocabulary size.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}

// IsFitted reports whether the vocabulary has been learned.
func (e *LabelEncoder) IsFitted() bool {
	return e.state.IsFitted()
}

type labelEncoderJSON struct {
	Classes []string `json:"classes"`
}

// MarshalJSON encodes the vocabulary as {"classes": [...]}.
func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	if !e.state.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "MarshalJSON")
	}
	return json.Marshal(labelEncoderJSON{Classes: e.classes})
}

// UnmarshalJSON restores a fitted vocabulary. Classes must be sorted and distinct.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var payload labelEncoderJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.Wrap(err, "LabelEncoder.UnmarshalJSON")
	}
	if len(payload.Classes) == 0 {
		return errors.NewValueError("LabelEncoder.UnmarshalJSON", "vocabulary has no classes")
	}
	for i := 1; i < len(payload.Classes); i++ {
		if payload.Classes[i-1] >= payload.Classes[i] {
			return errors.NewValueError("LabelEncoder.UnmarshalJSON", "classes must be sorted and distinct")
		}
	}
	if e.state == nil {
		e.state = model.NewStateManager()
	}
	e.setClasses(payload.Classes)
	e.state.SetState(model.ModelState{Fitted: true, NFeatures: 1})
	return nil
}
