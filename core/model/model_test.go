package model

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Classes []string
	Depth   int
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	s.SetDimensions(12, 48)
	s.SetFitted()
	assert.True(t, s.IsFitted())
	nf, ns := s.GetDimensions()
	assert.Equal(t, 12, nf)
	assert.Equal(t, 48, ns)

	restored := NewStateManager()
	restored.SetState(s.GetState())
	assert.Equal(t, s.GetState(), restored.GetState())

	s.Reset()
	assert.Equal(t, ModelState{}, s.GetState())
}

func TestStateManager_ConcurrentReads(t *testing.T) {
	s := NewStateManager()
	s.SetDimensions(3, 10)
	s.SetFitted()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, s.IsFitted())
			nf, _ := s.GetDimensions()
			assert.Equal(t, 3, nf)
		}()
	}
	wg.Wait()
}

func TestSaveLoadModel_Digest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	in := snapshot{Classes: []string{"dry", "moist"}, Depth: 4}

	saved, err := SaveModel(in, path)
	require.NoError(t, err)
	assert.Len(t, saved, 64)

	var out snapshot
	loaded, err := LoadModel(&out, path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded, "digest covers the same bytes")
	assert.Equal(t, in, out)
}

func TestWriterReader_DigestMatchesStream(t *testing.T) {
	var buf bytes.Buffer
	digest, err := SaveModelToWriter(snapshot{Depth: 1}, &buf)
	require.NoError(t, err)

	// 末尾のバイトもダイジェストに含まれる
	stream := append(buf.Bytes(), 0x00)
	var out snapshot
	other, err := LoadModelFromReader(&out, bytes.NewReader(stream))
	require.NoError(t, err)
	assert.NotEqual(t, digest, other)
}

func TestLoadModel_Errors(t *testing.T) {
	var out snapshot
	_, err := LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)

	_, err = LoadModelFromReader(&out, bytes.NewReader([]byte("not gob")))
	assert.Error(t, err)
}
