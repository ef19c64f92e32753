package model_selection

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

// CVResult stores cross-validation results
type CVResult struct {
	TestScores []float64
	FitTimes   []float64
}

// GetMeanScore returns mean test score
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return 0.0
	}
	return stat.Mean(cv.TestScores, nil)
}

// GetStdScore returns the sample standard deviation of test scores
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.TestScores) <= 1 {
		return 0.0
	}
	return stat.StdDev(cv.TestScores, nil)
}

// FoldFunc fits on the train rows and returns the score on the test rows.
type FoldFunc func(train, test []int) (float64, error)

// CrossValidate runs fn on every fold produced by splitter. Folds run
// sequentially; estimators are expected to parallelize internally.
func CrossValidate(splitter Splitter, nSamples int, y []int, fn FoldFunc) (*CVResult, error) {
	folds := splitter.Split(nSamples, y)
	result := &CVResult{
		TestScores: make([]float64, len(folds)),
		FitTimes:   make([]float64, len(folds)),
	}
	for i, fold := range folds {
		if len(fold.TestIndices) == 0 || len(fold.TrainIndices) == 0 {
			return nil, errors.NewValueError("CrossValidate", "fold with empty train or test set")
		}
		start := time.Now()
		score, err := fn(fold.TrainIndices, fold.TestIndices)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		result.TestScores[i] = score
		result.FitTimes[i] = time.Since(start).Seconds()
	}
	return result, nil
}
