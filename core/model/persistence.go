package model

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// SaveModel はモデルをgob形式でファイルに保存し、内容のSHA-256を返す
//
// 使用例:
//
//	digest, err := model.SaveModel(pipe, filepath.Join(dir, "model.gob"))
func SaveModel(m interface{}, filename string) (string, error) {
	file, err := os.Create(filename)
	if err != nil {
		return "", errors.Wrap(err, "failed to create model file")
	}

	digest, err := SaveModelToWriter(m, file)
	if err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return "", errors.Wrap(err, "failed to sync model file")
	}
	if err := file.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close model file")
	}
	return digest, nil
}

// LoadModel はファイルからモデルを読み込み、内容のSHA-256を返す
//
// 使用例:
//
//	var pipe pipeline.Pipeline
//	digest, err := model.LoadModel(&pipe, "model.gob")
func LoadModel(m interface{}, filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", errors.Wrap(err, "failed to open model file")
	}
	defer file.Close()

	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存し、書き込んだバイト列のSHA-256を返す
func SaveModelToWriter(m interface{}, w io.Writer) (string, error) {
	h := sha256.New()
	encoder := gob.NewEncoder(io.MultiWriter(w, h))
	if err := encoder.Encode(m); err != nil {
		return "", errors.Wrap(err, "failed to encode model")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LoadModelFromReader はio.Readerからモデルを読み込み、読み込んだバイト列のSHA-256を返す
func LoadModelFromReader(m interface{}, r io.Reader) (string, error) {
	h := sha256.New()
	tee := io.TeeReader(r, h)
	decoder := gob.NewDecoder(tee)
	if err := decoder.Decode(m); err != nil {
		return "", errors.Wrap(err, "failed to decode model")
	}
	// gob may stop short of EOF; hash the remainder so the digest covers the whole stream.
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return "", errors.Wrap(err, "failed to read model stream")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
