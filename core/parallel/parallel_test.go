package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

func TestWorkers(t *testing.T) {
	tests := []struct {
		name     string
		n, limit int
		want     int
	}{
		{"limit below n", 10, 3, 3},
		{"limit above n", 2, 8, 2},
		{"single job", 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Workers(tt.n, tt.limit))
		})
	}
	assert.GreaterOrEqual(t, Workers(1000, 0), 1)
}

func TestDo_RunsEveryIndexOnce(t *testing.T) {
	for _, limit := range []int{1, 4, 0} {
		seen := make([]int32, 50)
		err := Do(len(seen), limit, "test", func(i int) error {
			atomic.AddInt32(&seen[i], 1)
			return nil
		})
		require.NoError(t, err)
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "index %d with limit %d", i, limit)
		}
	}
}

func TestDo_ReturnsLowestIndexError(t *testing.T) {
	err := Do(20, 4, "test", func(i int) error {
		if i == 7 || i == 13 {
			return errors.Newf("job %d failed", i)
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job 7 failed")
}

func TestDo_RecoversPanic(t *testing.T) {
	err := Do(3, 2, "forest.fit", func(i int) error {
		if i == 1 {
			panic("bad tree")
		}
		return nil
	})
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "forest.fit", panicErr.Operation)
}

func TestDo_NoJobs(t *testing.T) {
	called := false
	assert.NoError(t, Do(0, 4, "test", func(int) error { called = true; return nil }))
	assert.False(t, called)
}
