// Package multioutput fits one classifier per target column.
package multioutput

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

// MultiOutputClassifier はターゲット列ごとに推定器を複製して学習する
// scikit-learnのMultiOutputClassifierと同じく、列間の相関は考慮しない
type MultiOutputClassifier struct {
	state *model.StateManager

	estimator   model.CloneableClassifier
	estimators_ []model.CloneableClassifier
	nOutputs_   int
}

// NewMultiOutputClassifier wraps estimator. estimator itself is never fitted;
// each target gets its own clone.
func NewMultiOutputClassifier(estimator model.CloneableClassifier) *MultiOutputClassifier {
	return &MultiOutputClassifier{
		state:     model.NewStateManager(),
		estimator: estimator,
	}
}

// Fit trains one clone per column of Y.
func (m *MultiOutputClassifier) Fit(X, Y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MultiOutputClassifier.Fit")

	if m.estimator == nil {
		return errors.NewValueError("MultiOutputClassifier.Fit", "base estimator is nil")
	}
	nSamples, nFeatures := X.Dims()
	yRows, nOutputs := Y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("MultiOutputClassifier.Fit", nSamples, yRows, 0)
	}
	if nOutputs < 1 {
		return errors.NewValueError("MultiOutputClassifier.Fit", "y must have at least one column")
	}

	logger := log.GetLoggerWithName("multioutput")
	estimators := make([]model.CloneableClassifier, nOutputs)
	for j := 0; j < nOutputs; j++ {
		col := mat.NewDense(nSamples, 1, mat.Col(nil, j, Y))
		est := m.estimator.Clone()
		if err := est.Fit(X, col); err != nil {
			return errors.Wrapf(err, "output %d", j)
		}
		estimators[j] = est
		logger.Debug("Output fitted",
			log.OperationKey, log.OperationFit,
			log.TargetsKey, j,
			log.ClassesKey, len(est.Classes()),
		)
	}

	m.estimators_ = estimators
	m.nOutputs_ = nOutputs
	m.state.SetDimensions(nFeatures, nSamples)
	m.state.SetFitted()
	return nil
}

func (m *MultiOutputClassifier) checkFitted(method string) error {
	if !m.state.IsFitted() {
		return errors.NewNotFittedError("MultiOutputClassifier", method)
	}
	return nil
}

// Predict returns an n_samples x n_outputs matrix of class labels.
func (m *MultiOutputClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := m.checkFitted("Predict"); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	out := mat.NewDense(nSamples, m.nOutputs_, nil)
	for j, est := range m.estimators_ {
		pred, err := est.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", j)
		}
		for i := 0; i < nSamples; i++ {
			out.Set(i, j, pred.At(i, 0))
		}
	}
	return out, nil
}

// PredictProba returns one probability matrix per output.
func (m *MultiOutputClassifier) PredictProba(X mat.Matrix) ([]mat.Matrix, error) {
	if err := m.checkFitted("PredictProba"); err != nil {
		return nil, err
	}
	probas := make([]mat.Matrix, m.nOutputs_)
	for j, est := range m.estimators_ {
		p, err := est.PredictProba(X)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", j)
		}
		probas[j] = p
	}
	return probas, nil
}

// Score returns the subset accuracy: a row counts only if every output matches.
func (m *MultiOutputClassifier) Score(X, Y mat.Matrix) float64 {
	pred, err := m.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, nOutputs := Y.Dims()
	if nSamples == 0 {
		return 0.0
	}
	correct := 0
	for i := 0; i < nSamples; i++ {
		match := true
		for j := 0; j < nOutputs; j++ {
			if pred.At(i, j) != Y.At(i, j) {
				match = false
				break
			}
		}
		if match {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the class labels of each output.
func (m *MultiOutputClassifier) Classes() [][]int {
	out := make([][]int, len(m.estimators_))
	for j, est := range m.estimators_ {
		out[j] = est.Classes()
	}
	return out
}

// Estimators returns the fitted per-output estimators.
func (m *MultiOutputClassifier) Estimators() []model.CloneableClassifier {
	return m.estimators_
}

// NOutputs returns the number of target columns seen during Fit.
func (m *MultiOutputClassifier) NOutputs() int {
	return m.nOutputs_
}

// IsFitted reports whether Fit has completed.
func (m *MultiOutputClassifier) IsFitted() bool {
	return m.state.IsFitted()
}

// GetParams returns the base estimator's parameters prefixed with "estimator__".
func (m *MultiOutputClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{}
	if pg, ok := m.estimator.(model.ParameterGetter); ok {
		for k, v := range pg.GetParams() {
			params["estimator__"+k] = v
		}
	}
	return params
}

// SetParams forwards "estimator__" parameters to the base estimator.
func (m *MultiOutputClassifier) SetParams(params map[string]interface{}) error {
	ps, ok := m.estimator.(model.ParameterSetter)
	if !ok {
		return errors.NewValueError("MultiOutputClassifier.SetParams", fmt.Sprintf("estimator %T does not accept parameters", m.estimator))
	}
	inner := make(map[string]interface{}, len(params))
	for k, v := range params {
		const prefix = "estimator__"
		if len(k) <= len(prefix) || k[:len(prefix)] != prefix {
			return errors.NewValueError("MultiOutputClassifier.SetParams", fmt.Sprintf("unknown parameter: %s", k))
		}
		inner[k[len(prefix):]] = v
	}
	return ps.SetParams(inner)
}

type multiOutputSnapshot struct {
	Estimator  model.CloneableClassifier
	Estimators []model.CloneableClassifier
	NOutputs   int
	State      model.ModelState
}

// GobEncode implements gob.GobEncoder. Concrete estimator types must be
// registered with gob.Register.
func (m *MultiOutputClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(multiOutputSnapshot{
		Estimator:  m.estimator,
		Estimators: m.estimators_,
		NOutputs:   m.nOutputs_,
		State:      m.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "MultiOutputClassifier.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (m *MultiOutputClassifier) GobDecode(data []byte) error {
	var s multiOutputSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "MultiOutputClassifier.GobDecode")
	}
	if len(s.Estimators) != s.NOutputs {
		return errors.NewDimensionError("MultiOutputClassifier.GobDecode", s.NOutputs, len(s.Estimators), 1)
	}
	m.estimator = s.Estimator
	m.estimators_ = s.Estimators
	m.nOutputs_ = s.NOutputs
	m.state = model.NewStateManager()
	m.state.SetState(s.State)
	return nil
}

func init() {
	gob.Register(&MultiOutputClassifier{})
}
