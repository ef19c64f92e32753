// Package artifact persists and restores the trained care model bundle:
// the fitted pipeline, the feature column list and the label vocabularies.
//
// A bundle lives in <root>/<run-id>/ and is published atomically: files are
// written into a temporary directory that is renamed into place, then the
// <root>/LATEST pointer is replaced through a temp file and rename. Every
// file is stamped with the run id, and the JSON files record the SHA-256 of
// model.gob so a mixed or corrupted set is rejected at load time.
package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/internal/codec"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/pipeline"

	// gob needs the concrete estimator types registered before decoding.
	_ "github.com/vineetsista/Plant-Care-Assistant/sklearn/ensemble"
	_ "github.com/vineetsista/Plant-Care-Assistant/sklearn/multioutput"
)

// File names inside a bundle directory.
const (
	ModelFile          = "model.gob"
	FeatureColumnsFile = "feature_columns.json"
	VocabulariesFile   = "label_vocabularies.json"
	LatestFile         = "LATEST"
)

// Bundle is a complete, mutually consistent set of trained artifacts.
type Bundle struct {
	RunID          string
	CreatedAt      time.Time
	Pipeline       *pipeline.Pipeline
	FeatureColumns []string
	Vocabularies   *codec.Vocabularies

	// ModelSHA256 is set by Save and Load.
	ModelSHA256 string
}

type modelFile struct {
	RunID     string
	CreatedAt time.Time
	Pipeline  *pipeline.Pipeline
}

type featureColumnsDoc struct {
	RunID       string   `json:"run_id"`
	ModelSHA256 string   `json:"model_sha256"`
	Columns     []string `json:"columns"`
}

type vocabulariesDoc struct {
	RunID       string              `json:"run_id"`
	ModelSHA256 string              `json:"model_sha256"`
	Targets     *codec.Vocabularies `json:"targets"`
}

// Save publishes b under root and points LATEST at it. It returns the run directory.
func Save(root string, b *Bundle) (dir string, err error) {
	if b == nil || b.Pipeline == nil || b.Vocabularies == nil {
		return "", errors.NewValueError("artifact.Save", "bundle is incomplete")
	}
	if b.RunID == "" || strings.ContainsAny(b.RunID, `/\`) || strings.HasPrefix(b.RunID, ".") {
		return "", errors.NewValueError("artifact.Save", "invalid run id "+b.RunID)
	}
	// Load と同じ整合性チェック: 読めないバンドルは公開しない
	if err := b.validate(); err != nil {
		return "", errors.Wrap(err, "refusing to publish inconsistent bundle")
	}
	logger := log.GetLoggerWithName("artifact").With(log.RunIDKey, b.RunID)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.Wrap(err, "create artifact root")
	}
	dir = filepath.Join(root, b.RunID)
	if _, err := os.Stat(dir); err == nil {
		return "", errors.NewValueError("artifact.Save", "run directory already exists: "+dir)
	}

	tmp, err := os.MkdirTemp(root, ".tmp-"+b.RunID+"-")
	if err != nil {
		return "", errors.Wrap(err, "create staging directory")
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	digest, err := model.SaveModel(&modelFile{
		RunID:     b.RunID,
		CreatedAt: b.CreatedAt,
		Pipeline:  b.Pipeline,
	}, filepath.Join(tmp, ModelFile))
	if err != nil {
		return "", errors.Wrap(err, "write "+ModelFile)
	}

	if err := writeJSON(filepath.Join(tmp, FeatureColumnsFile), featureColumnsDoc{
		RunID:       b.RunID,
		ModelSHA256: digest,
		Columns:     b.FeatureColumns,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(tmp, VocabulariesFile), vocabulariesDoc{
		RunID:       b.RunID,
		ModelSHA256: digest,
		Targets:     b.Vocabularies,
	}); err != nil {
		return "", err
	}

	if err := os.Rename(tmp, dir); err != nil {
		return "", errors.Wrap(err, "publish run directory")
	}
	if err := writeLatest(root, b.RunID); err != nil {
		return "", err
	}

	b.ModelSHA256 = digest
	logger.Info("Artifact bundle saved",
		log.OperationKey, log.OperationSave,
		log.PathKey, dir,
	)
	return dir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	return nil
}

// writeLatest replaces root/LATEST through a temp file and rename.
func writeLatest(root, runID string) error {
	f, err := os.CreateTemp(root, ".latest-")
	if err != nil {
		return errors.Wrap(err, "create LATEST temp file")
	}
	name := f.Name()
	if _, err := f.WriteString(runID + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return errors.Wrap(err, "write LATEST")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return errors.Wrap(err, "sync LATEST")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return errors.Wrap(err, "close LATEST")
	}
	if err := os.Rename(name, filepath.Join(root, LatestFile)); err != nil {
		_ = os.Remove(name)
		return errors.Wrap(err, "replace LATEST")
	}
	return nil
}

// ResolveDir returns the run directory for path: path/<LATEST> when path
// holds a LATEST pointer, otherwise path itself.
func ResolveDir(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(path, LatestFile))
	if os.IsNotExist(err) {
		return path, nil
	}
	if err != nil {
		return "", errors.NewArtifactLoadError(LatestFile, "unreadable", err)
	}
	runID := strings.TrimSpace(string(data))
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return "", errors.NewArtifactLoadError(LatestFile, "invalid run id", nil)
	}
	return filepath.Join(path, runID), nil
}

// Load restores the bundle at path (an artifact root with LATEST or a run
// directory). Any missing, corrupt or mismatched file yields an ArtifactLoadError.
func Load(path string) (*Bundle, error) {
	dir, err := ResolveDir(path)
	if err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("artifact")

	var mf modelFile
	digest, err := model.LoadModel(&mf, filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, errors.NewArtifactLoadError(ModelFile, "missing or corrupt", err)
	}
	if mf.Pipeline == nil || !mf.Pipeline.IsFitted() {
		return nil, errors.NewArtifactLoadError(ModelFile, "pipeline is not fitted", nil)
	}
	if mf.RunID == "" {
		return nil, errors.NewArtifactLoadError(ModelFile, "no run id", nil)
	}

	var fc featureColumnsDoc
	if err := readJSON(filepath.Join(dir, FeatureColumnsFile), &fc); err != nil {
		return nil, err
	}
	if err := checkStamp(FeatureColumnsFile, fc.RunID, fc.ModelSHA256, mf.RunID, digest); err != nil {
		return nil, err
	}

	var vd vocabulariesDoc
	if err := readJSON(filepath.Join(dir, VocabulariesFile), &vd); err != nil {
		return nil, err
	}
	if err := checkStamp(VocabulariesFile, vd.RunID, vd.ModelSHA256, mf.RunID, digest); err != nil {
		return nil, err
	}
	if vd.Targets == nil {
		return nil, errors.NewArtifactLoadError(VocabulariesFile, "no targets", nil)
	}

	b := &Bundle{
		RunID:          mf.RunID,
		CreatedAt:      mf.CreatedAt,
		Pipeline:       mf.Pipeline,
		FeatureColumns: fc.Columns,
		Vocabularies:   vd.Targets,
		ModelSHA256:    digest,
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	logger.Info("Artifact bundle loaded",
		log.OperationKey, log.OperationLoad,
		log.RunIDKey, b.RunID,
		log.PathKey, dir,
	)
	return b, nil
}

func readJSON(path string, v any) error {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewArtifactLoadError(name, "missing or unreadable", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewArtifactLoadError(name, "corrupt", err)
	}
	return nil
}

func checkStamp(name, runID, sha, wantRunID, wantSHA string) error {
	if runID != wantRunID {
		return errors.NewArtifactLoadError(name, "run id "+runID+" does not match model run id "+wantRunID, nil)
	}
	if sha != wantSHA {
		return errors.NewArtifactLoadError(name, "model hash mismatch", nil)
	}
	return nil
}

type multiOutputClasses interface {
	Classes() [][]int
}

// validate checks the cross-artifact invariants: the encoder was fitted on
// exactly the listed feature columns, and every class code the classifier
// can emit decodes through its target vocabulary.
func (b *Bundle) validate() error {
	if len(b.FeatureColumns) == 0 {
		return errors.NewArtifactLoadError(FeatureColumnsFile, "no feature columns", nil)
	}
	if n := b.Pipeline.NFeaturesIn(); n != len(b.FeatureColumns) {
		return errors.NewArtifactLoadError(FeatureColumnsFile, "feature column count does not match fitted encoder", errors.NewDimensionError("artifact.Load", n, len(b.FeatureColumns), 1))
	}

	mo, ok := b.Pipeline.Classifier().(multiOutputClasses)
	if !ok {
		return errors.NewArtifactLoadError(ModelFile, "classifier does not expose per-output classes", nil)
	}
	classes := mo.Classes()
	targets := b.Vocabularies.Targets()
	if len(classes) != len(targets) {
		return errors.NewArtifactLoadError(VocabulariesFile, "target count does not match model outputs", errors.NewDimensionError("artifact.Load", len(classes), len(targets), 1))
	}
	for j, target := range targets {
		enc, _ := b.Vocabularies.Encoder(target)
		for _, code := range classes[j] {
			if code < 0 || code >= enc.Len() {
				return errors.NewArtifactLoadError(VocabulariesFile, "target "+target+" cannot decode model output", errors.NewInvalidCodeError(code, enc.Len()))
			}
		}
	}
	return nil
}
