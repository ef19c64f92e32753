package preprocessing

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

func TestLabelEncoder_RoundTrip(t *testing.T) {
	enc := NewLabelEncoder()
	require.NoError(t, enc.Fit([]string{"moist", "dry", "regular", "dry"}))

	assert.Equal(t, []string{"dry", "moist", "regular"}, enc.Classes())
	assert.Equal(t, 3, enc.Len())

	for _, label := range enc.Classes() {
		code, err := enc.Encode(label)
		require.NoError(t, err)
		back, err := enc.Decode(code)
		require.NoError(t, err)
		assert.Equal(t, label, back)
	}

	codes, err := enc.Transform([]string{"regular", "dry"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, codes)

	labels, err := enc.InverseTransform(codes)
	require.NoError(t, err)
	assert.Equal(t, []string{"regular", "dry"}, labels)
}

func TestLabelEncoder_Errors(t *testing.T) {
	enc := NewLabelEncoder()
	_, err := enc.Encode("dry")
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, enc.Fit([]string{"Bright indirect", "Full sun"}))

	_, err = enc.Encode("Shade")
	var unk *errors.UnknownLabelError
	require.True(t, errors.As(err, &unk))
	assert.Equal(t, "Shade", unk.Label)

	for _, code := range []int{-1, 2, 99} {
		_, err = enc.Decode(code)
		var inv *errors.InvalidCodeError
		require.True(t, errors.As(err, &inv), "code %d", code)
		assert.Equal(t, 2, inv.Size)
	}

	assert.Error(t, enc.Fit([]string{"x"}), "refit must be rejected")
	assert.Error(t, NewLabelEncoder().Fit(nil))
}

func TestLabelEncoder_JSON(t *testing.T) {
	enc := NewLabelEncoder()
	require.NoError(t, enc.Fit([]string{"b", "a", "c"}))

	data, err := json.Marshal(enc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"classes":["a","b","c"]}`, string(data))

	restored := NewLabelEncoder()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, enc.Classes(), restored.Classes())

	code, err := restored.Encode("c")
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	assert.Error(t, json.Unmarshal([]byte(`{"classes":["b","a"]}`), NewLabelEncoder()))
	assert.Error(t, json.Unmarshal([]byte(`{"classes":[]}`), NewLabelEncoder()))
}
