package preprocessing

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MissingValue is the sentinel for an absent categorical value. It never
// appears among fitted categories, so with handle_unknown="ignore" it
// encodes to an all-zero block.
const MissingValue = "\x00missing"

const (
	// HandleUnknownIgnore encodes unseen categories as all zeros.
	HandleUnknownIgnore = "ignore"
	// HandleUnknownError makes Transform fail on unseen categories.
	HandleUnknownError = "error"
)

// OneHotEncoder はscikit-learn互換のカテゴリカル変数のone-hotエンコーダー
// 各列のカテゴリを辞書順に並べ、列ごとに連続したブロックとして出力する
type OneHotEncoder struct {
	state *model.StateManager

	handleUnknown string

	categories [][]string
	index      []map[string]int
	offsets    []int
	nOutputs   int
}

// OneHotEncoderOption is a functional option for OneHotEncoder.
type OneHotEncoderOption func(*OneHotEncoder)

// WithHandleUnknown sets the unknown-category policy ("ignore" or "error").
func WithHandleUnknown(policy string) OneHotEncoderOption {
	return func(e *OneHotEncoder) {
		e.handleUnknown = policy
	}
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewOneHotEncoder(preprocessing.WithHandleUnknown("ignore"))
//	Xt, err := enc.FitTransform(rows)
func NewOneHotEncoder(opts ...OneHotEncoderOption) *OneHotEncoder {
	e := &OneHotEncoder{
		state:         model.NewStateManager(),
		handleUnknown: HandleUnknownIgnore,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fit は各列のカテゴリを学習する
func (e *OneHotEncoder) Fit(X [][]string) error {
	if e.handleUnknown != HandleUnknownIgnore && e.handleUnknown != HandleUnknownError {
		return errors.NewValueError("OneHotEncoder.Fit", fmt.Sprintf("handle_unknown must be 'ignore' or 'error', got %q", e.handleUnknown))
	}
	nSamples := len(X)
	if nSamples == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	nCols := len(X[0])
	if nCols == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "no feature columns", errors.ErrEmptyData)
	}

	categories := make([][]string, nCols)
	for j := 0; j < nCols; j++ {
		seen := make(map[string]struct{})
		for i, row := range X {
			if len(row) != nCols {
				return errors.NewDimensionError("OneHotEncoder.Fit", nCols, len(row), 1)
			}
			v := row[j]
			if v == MissingValue {
				return errors.NewModelError("OneHotEncoder.Fit", fmt.Sprintf("row %d column %d", i, j), errors.ErrMissingValue)
			}
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		categories[j] = cats
	}

	e.setCategories(categories)
	e.state.SetDimensions(nCols, nSamples)
	e.state.SetFitted()
	return nil
}

func (e *OneHotEncoder) setCategories(categories [][]string) {
	e.categories = categories
	e.index = make([]map[string]int, len(categories))
	e.offsets = make([]int, len(categories))
	offset := 0
	for j, cats := range categories {
		e.offsets[j] = offset
		e.index[j] = make(map[string]int, len(cats))
		for k, c := range cats {
			e.index[j][c] = k
		}
		offset += len(cats)
	}
	e.nOutputs = offset
}

// Transform は学習済みのカテゴリでone-hot行列を作る
func (e *OneHotEncoder) Transform(X [][]string) (mat.Matrix, error) {
	if !e.state.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(X) == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	nCols := len(e.categories)
	result := mat.NewDense(len(X), e.nOutputs, nil)
	for i, row := range X {
		if len(row) != nCols {
			return nil, errors.NewDimensionError("OneHotEncoder.Transform", nCols, len(row), 1)
		}
		for j, v := range row {
			k, ok := e.index[j][v]
			if !ok {
				if e.handleUnknown == HandleUnknownError {
					return nil, errors.NewValueError("OneHotEncoder.Transform",
						fmt.Sprintf("found unknown category %q in column %d", v, j))
				}
				continue
			}
			result.Set(i, e.offsets[j]+k, 1)
		}
	}
	return result, nil
}

// FitTransform は学習と変換を同時に実行する
func (e *OneHotEncoder) FitTransform(X [][]string) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// Categories returns a copy of the fitted categories per input column.
func (e *OneHotEncoder) Categories() [][]string {
	out := make([][]string, len(e.categories))
	for j, cats := range e.categories {
		out[j] = append([]string(nil), cats...)
	}
	return out
}

// NFeaturesIn returns the number of input columns seen during Fit.
func (e *OneHotEncoder) NFeaturesIn() int {
	return len(e.categories)
}

// NOutputs returns the width of the encoded matrix.
func (e *OneHotEncoder) NOutputs() int {
	return e.nOutputs
}

// IsFitted reports whether Fit has completed.
func (e *OneHotEncoder) IsFitted() bool {
	return e.state.IsFitted()
}

// GetFeatureNamesOut returns "<input>_<category>" for each output column.
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string) ([]string, error) {
	if !e.state.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "GetFeatureNamesOut")
	}
	if len(inputFeatures) != len(e.categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.GetFeatureNamesOut", len(e.categories), len(inputFeatures), 1)
	}
	names := make([]string, 0, e.nOutputs)
	for j, cats := range e.categories {
		for _, c := range cats {
			names = append(names, inputFeatures[j]+"_"+c)
		}
	}
	return names, nil
}

// GetParams はエンコーダーのパラメータを取得する
func (e *OneHotEncoder) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"handle_unknown": e.handleUnknown,
	}
}

type oneHotState struct {
	HandleUnknown string
	Categories    [][]string
	State         model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (e *OneHotEncoder) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(oneHotState{
		HandleUnknown: e.handleUnknown,
		Categories:    e.categories,
		State:         e.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "OneHotEncoder.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (e *OneHotEncoder) GobDecode(data []byte) error {
	var s oneHotState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "OneHotEncoder.GobDecode")
	}
	e.handleUnknown = s.HandleUnknown
	e.setCategories(s.Categories)
	e.state = model.NewStateManager()
	e.state.SetState(s.State)
	return nil
}

func init() {
	gob.Register(&OneHotEncoder{})
}
