// Package model provides the estimator interfaces and shared state helpers
// used by the encoders and classifiers in this module.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator combines Fitter and Predictor.
type Estimator interface {
	Fitter
	Predictor
}

// Classifier is a single-output classifier over integer class codes stored
// as float64 in a column vector.
type Classifier interface {
	Estimator

	// PredictProba returns one column per entry of Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class codes seen during fitting.
	Classes() []int
}

// CloneableClassifier can produce an unfitted copy with identical hyperparameters.
// MultiOutputClassifier uses it to create one estimator per target column.
type CloneableClassifier interface {
	Classifier
	Clone() CloneableClassifier
}

// CategoricalTransformer maps string-valued feature rows to a numeric matrix.
type CategoricalTransformer interface {
	// Fit learns the categories of each column.
	Fit(X [][]string) error

	// Transform encodes rows using the fitted categories.
	Transform(X [][]string) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X [][]string) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}
