// Package pipeline chains a categorical encoder with a classifier so that
// raw string feature rows can be fitted and predicted in one step.
package pipeline

import (
	"bytes"
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

// Pipeline は前処理と推定器を連結する
// 学習後は読み取り専用として扱い、再学習する場合は新しいPipelineを作る
type Pipeline struct {
	state *model.StateManager

	encoder    model.CategoricalTransformer
	classifier model.Estimator
}

// New creates a pipeline from an encoder and a classifier.
func New(encoder model.CategoricalTransformer, classifier model.Estimator) *Pipeline {
	return &Pipeline{
		state:      model.NewStateManager(),
		encoder:    encoder,
		classifier: classifier,
	}
}

// Fit fits the encoder on X, then the classifier on the encoded matrix.
func (p *Pipeline) Fit(X [][]string, Y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if p.encoder == nil || p.classifier == nil {
		return errors.NewValueError("Pipeline.Fit", "encoder and classifier are required")
	}
	if p.state.IsFitted() {
		return errors.NewValueError("Pipeline.Fit", "pipeline is already fitted")
	}
	rows, _ := Y.Dims()
	if rows != len(X) {
		return errors.NewDimensionError("Pipeline.Fit", len(X), rows, 0)
	}

	Xt, err := p.encoder.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "encoder")
	}
	if err := p.classifier.Fit(Xt, Y); err != nil {
		return errors.Wrap(err, "classifier")
	}

	nFeatures := 0
	if len(X) > 0 {
		nFeatures = len(X[0])
	}
	p.state.SetDimensions(nFeatures, len(X))
	p.state.SetFitted()
	return nil
}

// Transform encodes X with the fitted encoder.
func (p *Pipeline) Transform(X [][]string) (mat.Matrix, error) {
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	return p.encoder.Transform(X)
}

// Predict encodes X and returns the classifier's predictions.
func (p *Pipeline) Predict(X [][]string) (mat.Matrix, error) {
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	Xt, err := p.encoder.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.classifier.Predict(Xt)
}

// PredictRow predicts a single row and returns one integer code per output.
func (p *Pipeline) PredictRow(row []string) ([]int, error) {
	pred, err := p.Predict([][]string{row})
	if err != nil {
		return nil, err
	}
	_, nOutputs := pred.Dims()
	codes := make([]int, nOutputs)
	for j := range codes {
		codes[j] = int(math.Round(pred.At(0, j)))
	}
	return codes, nil
}

// NFeaturesIn returns the number of raw feature columns the pipeline was fitted on.
func (p *Pipeline) NFeaturesIn() int {
	n, _ := p.state.GetDimensions()
	return n
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

// Encoder returns the encoder step.
func (p *Pipeline) Encoder() model.CategoricalTransformer {
	return p.encoder
}

// Classifier returns the classifier step.
func (p *Pipeline) Classifier() model.Estimator {
	return p.classifier
}

type pipelineSnapshot struct {
	Encoder    model.CategoricalTransformer
	Classifier model.Estimator
	State      model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (p *Pipeline) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(pipelineSnapshot{
		Encoder:    p.encoder,
		Classifier: p.classifier,
		State:      p.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Pipeline.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (p *Pipeline) GobDecode(data []byte) error {
	var s pipelineSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "Pipeline.GobDecode")
	}
	if s.Encoder == nil || s.Classifier == nil {
		return errors.NewValueError("Pipeline.GobDecode", "incomplete pipeline")
	}
	p.encoder = s.Encoder
	p.classifier = s.Classifier
	p.state = model.NewStateManager()
	p.state.SetState(s.State)
	return nil
}
