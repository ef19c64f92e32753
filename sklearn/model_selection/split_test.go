package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sortedUnion(a, b []int) []int {
	out := append(append([]int(nil), a...), b...)
	sort.Ints(out)
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestTrainTestSplit(t *testing.T) {
	tests := []struct {
		n         int
		testSize  float64
		wantTest  int
		wantTrain int
	}{
		{10, 0.2, 2, 8},
		{11, 0.2, 3, 8},
		{5, 0.2, 1, 4},
		{100, 0.25, 25, 75},
	}
	for _, tt := range tests {
		train, test, err := TrainTestSplit(tt.n, tt.testSize, 42)
		require.NoError(t, err)
		assert.Len(t, test, tt.wantTest, "n=%d", tt.n)
		assert.Len(t, train, tt.wantTrain, "n=%d", tt.n)
		assert.Equal(t, seq(tt.n), sortedUnion(train, test))
	}
}

func TestTrainTestSplit_Seeded(t *testing.T) {
	train1, test1, err := TrainTestSplit(50, 0.2, 42)
	require.NoError(t, err)
	train2, test2, err := TrainTestSplit(50, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	_, test3, err := TrainTestSplit(50, 0.2, 43)
	require.NoError(t, err)
	assert.NotEqual(t, test1, test3)
}

func TestTrainTestSplit_Invalid(t *testing.T) {
	_, _, err := TrainTestSplit(10, 0, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(10, 1, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(1, 0.2, 1)
	assert.Error(t, err)
	_, _, err = TrainTestSplit(0, 0.2, 1)
	assert.Error(t, err)
}

func TestKFold(t *testing.T) {
	kf := NewKFold(3, true, 7)
	folds := kf.Split(10, nil)
	require.Len(t, folds, 3)

	var allTest []int
	for i, f := range folds {
		assert.Equal(t, seq(10), sortedUnion(f.TrainIndices, f.TestIndices), "fold %d", i)
		allTest = append(allTest, f.TestIndices...)
	}
	sort.Ints(allTest)
	assert.Equal(t, seq(10), allTest)
	assert.Len(t, folds[0].TestIndices, 4)
	assert.Len(t, folds[2].TestIndices, 3)

	assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
}

func TestStratifiedKFold(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1}
	skf := NewStratifiedKFold(3, true, 1)
	folds := skf.Split(len(y), y)
	require.Len(t, folds, 3)

	for i, f := range folds {
		assert.Equal(t, seq(len(y)), sortedUnion(f.TrainIndices, f.TestIndices), "fold %d", i)
		counts := map[int]int{}
		for _, idx := range f.TestIndices {
			counts[y[idx]]++
		}
		assert.Equal(t, 2, counts[0], "fold %d", i)
		assert.Equal(t, 1, counts[1], "fold %d", i)
	}
}

func TestCrossValidate(t *testing.T) {
	calls := 0
	result, err := CrossValidate(NewKFold(4, false, 0), 8, nil, func(train, test []int) (float64, error) {
		calls++
		assert.Len(t, train, 6)
		assert.Len(t, test, 2)
		return float64(calls) / 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.InDelta(t, 0.625, result.GetMeanScore(), 1e-12)
	assert.Greater(t, result.GetStdScore(), 0.0)

	_, err = CrossValidate(NewKFold(4, false, 0), 3, nil, func(_, _ []int) (float64, error) { return 0, nil })
	assert.Error(t, err, "more folds than samples leaves an empty test fold")
}

func TestTakeRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	got := TakeRows(X, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, got.RawMatrix().Data)

	rows := [][]string{{"a"}, {"b"}, {"c"}}
	assert.Equal(t, [][]string{{"c"}, {"b"}}, TakeStrings(rows, []int{2, 1}))
}
