package ensemble

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

func clusters() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
		10, 0,
		10, 1,
		11, 0,
		11, 1,
	})
	y := mat.NewDense(12, 1, []float64{
		0, 0, 0, 0,
		1, 1, 1, 1,
		2, 2, 2, 2,
	})
	return X, y
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X, y := clusters()
	rf := NewRandomForestClassifier(WithNEstimators(30), WithRandomState(42))
	require.NoError(t, rf.Fit(X, y))

	assert.Equal(t, []int{0, 1, 2}, rf.Classes())
	assert.Len(t, rf.Estimators(), 30)
	assert.Equal(t, 1.0, rf.Score(X, y))

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	assert.Equal(t, 12, rows)
	assert.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += proba.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	imp := rf.GetFeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
}

func TestRandomForestClassifier_Deterministic(t *testing.T) {
	X, y := clusters()

	fit := func() mat.Matrix {
		rf := NewRandomForestClassifier(WithNEstimators(25), WithRandomState(7), WithClassWeight("balanced"))
		require.NoError(t, rf.Fit(X, y))
		query := mat.NewDense(3, 2, []float64{3, 3, 8, 2, 2, 8})
		p, err := rf.PredictProba(query)
		require.NoError(t, err)
		return p
	}

	first := fit()
	for i := 0; i < 3; i++ {
		assert.True(t, mat.Equal(first, fit()), "same seed must give identical forests")
	}
}

func TestRandomForestClassifier_BalancedMinority(t *testing.T) {
	// 9 rows of class 0 and 3 of class 1 sharing the same feature value:
	// only class weighting decides the leaf majority.
	X := mat.NewDense(12, 1, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 9; i < 12; i++ {
		y.Set(i, 0, 1)
	}

	rf := NewRandomForestClassifier(WithNEstimators(50), WithRandomState(1), WithClassWeight("balanced"), WithBootstrap(false))
	require.NoError(t, rf.Fit(X, y))
	proba, err := rf.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba.At(0, 1), 1e-9)

	unweighted := NewRandomForestClassifier(WithNEstimators(50), WithRandomState(1), WithBootstrap(false))
	require.NoError(t, unweighted.Fit(X, y))
	proba, err = unweighted.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, proba.At(0, 1), 1e-9)
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	X, y := clusters()

	_, err := NewRandomForestClassifier().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	assert.Error(t, NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y))
	assert.Error(t, NewRandomForestClassifier(WithMaxFeatures("half")).Fit(X, y))
	assert.Error(t, NewRandomForestClassifier(WithClassWeight("balanced_subsample")).Fit(X, y))
	assert.Error(t, NewRandomForestClassifier().Fit(X, mat.NewDense(3, 1, nil)))

	rf := NewRandomForestClassifier(WithNEstimators(3), WithRandomState(0))
	require.NoError(t, rf.Fit(X, y))
	_, err = rf.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestRandomForestClassifier_CloneAndParams(t *testing.T) {
	rf := NewRandomForestClassifier(WithNEstimators(200), WithClassWeight("balanced"), WithRandomState(42), WithMaxDepth(6))
	clone, ok := rf.Clone().(*RandomForestClassifier)
	require.True(t, ok)
	assert.Equal(t, rf.GetParams(), clone.GetParams())
	assert.False(t, clone.IsFitted())

	require.NoError(t, clone.SetParams(map[string]interface{}{"n_estimators": "10", "bootstrap": false}))
	assert.Equal(t, 10, clone.nEstimators)
	assert.False(t, clone.bootstrap)
	assert.Error(t, clone.SetParams(map[string]interface{}{"oob_score": true}))
}

func TestRandomForestClassifier_Gob(t *testing.T) {
	X, y := clusters()
	rf := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(3))
	require.NoError(t, rf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(rf))
	restored := &RandomForestClassifier{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(restored))

	assert.Equal(t, rf.GetParams(), restored.GetParams())
	a, err := rf.PredictProba(X)
	require.NoError(t, err)
	b, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(a, b, 1e-12))
}

func TestFeaturesPerSplit(t *testing.T) {
	tests := []struct {
		mode      string
		nFeatures int
		want      int
	}{
		{MaxFeaturesSqrt, 40, int(math.Sqrt(40))},
		{MaxFeaturesSqrt, 1, 1},
		{MaxFeaturesLog2, 16, 4},
		{MaxFeaturesLog2, 1, 1},
		{MaxFeaturesAll, 9, 9},
	}
	for _, tt := range tests {
		rf := NewRandomForestClassifier(WithMaxFeatures(tt.mode))
		assert.Equal(t, tt.want, rf.featuresPerSplit(tt.nFeatures), "%s/%d", tt.mode, tt.nFeatures)
	}
}
