// Package training fits the care model from a catalog table: it drops
// incomplete rows, builds the label vocabularies, splits a seeded holdout,
// fits the encoder and the multi-output forest, evaluates per target and
// optionally publishes the artifact bundle.
package training

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/internal/artifact"
	"github.com/vineetsista/Plant-Care-Assistant/internal/catalog"
	"github.com/vineetsista/Plant-Care-Assistant/internal/codec"
	"github.com/vineetsista/Plant-Care-Assistant/metrics"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
	"github.com/vineetsista/Plant-Care-Assistant/preprocessing"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/ensemble"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/model_selection"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/multioutput"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/pipeline"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/tree"
)

// MinClassExamples is the smallest per-class count a target may have.
const MinClassExamples = 2

// Options controls a training run.
type Options struct {
	// Seed drives the holdout split and the forest.
	Seed int64
	// TestSize is the holdout fraction in (0, 1).
	TestSize float64
	// NEstimators is the number of trees per target.
	NEstimators int
	// MaxDepth limits tree depth; <= 0 means unlimited.
	MaxDepth int
	// CVFolds runs stratified k-fold cross-validation on the kept rows when >= 2.
	CVFolds int
	// ArtifactDir is the bundle root. Empty skips persistence.
	ArtifactDir string
}

// DefaultOptions returns the standard run settings.
func DefaultOptions() Options {
	return Options{
		Seed:        42,
		TestSize:    0.2,
		NEstimators: 200,
	}
}

// FeatureImportance is the impurity importance of one encoded column.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TargetEvaluation is the holdout evaluation of one target.
type TargetEvaluation struct {
	Target      string              `json:"target"`
	Report      *metrics.Report     `json:"report"`
	Importances []FeatureImportance `json:"importances"`
}

// CrossValidation summarizes the optional k-fold run.
type CrossValidation struct {
	Folds  int       `json:"folds"`
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
}

// Result describes a finished run.
type Result struct {
	RunID       string             `json:"run_id"`
	Samples     int                `json:"samples"`
	Dropped     int                `json:"dropped"`
	TrainSize   int                `json:"train_size"`
	TestSize    int                `json:"test_size"`
	Evaluation  []TargetEvaluation `json:"evaluation"`
	CV          *CrossValidation   `json:"cv,omitempty"`
	ArtifactDir string             `json:"artifact_dir,omitempty"`
	Duration    time.Duration      `json:"duration"`

	// Bundle is the trained artifact set, persisted or not.
	Bundle *artifact.Bundle `json:"-"`
}

// Dataset is the model-ready projection of a table.
type Dataset struct {
	X       [][]string
	Labels  [][]string // Labels[j] holds every value of target j
	Dropped int
}

// Prepare drops incomplete records and projects the rest onto the feature
// and target columns. Watering is normalized.
func Prepare(table *catalog.Table) *Dataset {
	ds := &Dataset{Labels: make([][]string, len(codec.TargetColumns))}
	for _, r := range table.Records() {
		if !codec.Complete(r) {
			ds.Dropped++
			continue
		}
		targets, ok := codec.TargetValues(r)
		if !ok {
			ds.Dropped++
			continue
		}
		ds.X = append(ds.X, codec.FeatureRow(r))
		for j, v := range targets {
			ds.Labels[j] = append(ds.Labels[j], v)
		}
	}
	return ds
}

// checkClassCounts rejects targets with a class seen fewer than MinClassExamples times.
func checkClassCounts(ds *Dataset) error {
	if len(ds.X) == 0 {
		return errors.NewInsufficientDataError("", "", 0, MinClassExamples)
	}
	for j, target := range codec.TargetColumns {
		counts := make(map[string]int)
		for _, v := range ds.Labels[j] {
			counts[v]++
		}
		classes := make([]string, 0, len(counts))
		for c := range counts {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, c := range classes {
			if counts[c] < MinClassExamples {
				return errors.NewInsufficientDataError(target, c, counts[c], MinClassExamples)
			}
		}
	}
	return nil
}

// encodeTargets returns the n×k code matrix of ds.
func encodeTargets(ds *Dataset, vocab *codec.Vocabularies) (*mat.Dense, error) {
	n, k := len(ds.X), len(codec.TargetColumns)
	Y := mat.NewDense(n, k, nil)
	row := make([]string, k)
	for i := 0; i < n; i++ {
		for j := range row {
			row[j] = ds.Labels[j][i]
		}
		codes, err := vocab.EncodeRow(row)
		if err != nil {
			return nil, err
		}
		for j, c := range codes {
			Y.Set(i, j, float64(c))
		}
	}
	return Y, nil
}

func newPipeline(opts Options) *pipeline.Pipeline {
	return pipeline.New(
		preprocessing.NewOneHotEncoder(),
		multioutput.NewMultiOutputClassifier(ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(opts.NEstimators),
			ensemble.WithMaxDepth(opts.MaxDepth),
			ensemble.WithClassWeight(tree.ClassWeightBalanced),
			ensemble.WithRandomState(opts.Seed),
		)),
	)
}

func validateOptions(opts Options) error {
	if opts.TestSize <= 0 || opts.TestSize >= 1 {
		return errors.NewValueError("training.Train", "test size must be in (0, 1)")
	}
	if opts.NEstimators < 1 {
		return errors.NewValueError("training.Train", "n_estimators must be positive")
	}
	if opts.Seed < 0 {
		return errors.NewValueError("training.Train", "seed must be non-negative")
	}
	return nil
}

// Train runs the full training procedure on table.
func Train(table *catalog.Table, opts Options) (*Result, error) {
	start := time.Now()
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("training").With(log.RunIDKey, runID)

	ds := Prepare(table)
	logger.Info("Training data prepared",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, len(ds.X),
		log.DroppedKey, ds.Dropped,
		log.FeaturesKey, len(codec.FeatureColumns),
		log.TargetsKey, len(codec.TargetColumns),
	)
	if err := checkClassCounts(ds); err != nil {
		logger.Error("Not enough training data", err, log.ErrorCodeKey, log.ErrorInsufficientData)
		return nil, err
	}

	vocab, err := codec.FitVocabularies(codec.TargetColumns, ds.Labels)
	if err != nil {
		return nil, err
	}
	Y, err := encodeTargets(ds, vocab)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := model_selection.TrainTestSplit(len(ds.X), opts.TestSize, uint64(opts.Seed))
	if err != nil {
		return nil, errors.NewInsufficientDataError("", "", len(ds.X), MinClassExamples)
	}

	p := newPipeline(opts)
	if err := p.Fit(model_selection.TakeStrings(ds.X, trainIdx), model_selection.TakeRows(Y, trainIdx)); err != nil {
		return nil, errors.Wrap(err, "fit pipeline")
	}
	logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.ModelNameKey, "MultiOutputClassifier(RandomForestClassifier)",
		log.SamplesKey, len(trainIdx),
		log.RandomSeedKey, opts.Seed,
	)

	evaluation, err := evaluate(p, vocab, model_selection.TakeStrings(ds.X, testIdx), model_selection.TakeRows(Y, testIdx))
	if err != nil {
		return nil, err
	}
	for _, ev := range evaluation {
		logger.Info("Holdout evaluation",
			log.PhaseKey, log.PhaseValidation,
			log.TargetKey, ev.Target,
			log.AccuracyKey, ev.Report.Accuracy,
			log.PrecisionKey, ev.Report.MacroAvg.Precision,
			log.RecallKey, ev.Report.MacroAvg.Recall,
		)
	}

	result := &Result{
		RunID:      runID,
		Samples:    len(ds.X),
		Dropped:    ds.Dropped,
		TrainSize:  len(trainIdx),
		TestSize:   len(testIdx),
		Evaluation: evaluation,
		Bundle: &artifact.Bundle{
			RunID:          runID,
			CreatedAt:      start.UTC(),
			Pipeline:       p,
			FeatureColumns: append([]string(nil), codec.FeatureColumns...),
			Vocabularies:   vocab,
		},
	}

	if opts.CVFolds >= 2 {
		cv, err := crossValidate(ds, Y, opts)
		if err != nil {
			return nil, errors.Wrap(err, "cross-validation")
		}
		result.CV = cv
		logger.Info("Cross-validation finished",
			log.PhaseKey, log.PhaseValidation,
			log.AccuracyKey, cv.Mean,
		)
	}

	if opts.ArtifactDir != "" {
		dir, err := artifact.Save(opts.ArtifactDir, result.Bundle)
		if err != nil {
			return nil, errors.Wrap(err, "save artifacts")
		}
		result.ArtifactDir = dir
	}

	result.Duration = time.Since(start)
	logger.Info("Training finished", log.DurationMsKey, result.Duration.Milliseconds())
	return result, nil
}

// predictCodes returns the n×k predicted codes of X.
func predictCodes(p *pipeline.Pipeline, X [][]string) ([][]int, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return nil, err
	}
	n, k := pred.Dims()
	out := make([][]int, k)
	for j := 0; j < k; j++ {
		out[j] = make([]int, n)
		for i := 0; i < n; i++ {
			out[j][i] = int(math.Round(pred.At(i, j)))
		}
	}
	return out, nil
}

func columnCodes(Y mat.Matrix, j int) []int {
	col := mat.Col(nil, j, Y)
	out := make([]int, len(col))
	for i, v := range col {
		out[i] = int(math.Round(v))
	}
	return out
}

type importanceSource interface {
	GetFeatureImportances() []float64
}

type namedEncoder interface {
	GetFeatureNamesOut(inputFeatures []string) ([]string, error)
}

func evaluate(p *pipeline.Pipeline, vocab *codec.Vocabularies, X [][]string, Y mat.Matrix) ([]TargetEvaluation, error) {
	pred, err := predictCodes(p, X)
	if err != nil {
		return nil, errors.Wrap(err, "predict holdout")
	}

	var featureNames []string
	if enc, ok := p.Encoder().(namedEncoder); ok {
		featureNames, _ = enc.GetFeatureNamesOut(codec.FeatureColumns)
	}
	var estimators []importanceSource
	if mo, ok := p.Classifier().(*multioutput.MultiOutputClassifier); ok {
		for _, est := range mo.Estimators() {
			if src, ok := est.(importanceSource); ok {
				estimators = append(estimators, src)
			}
		}
	}

	out := make([]TargetEvaluation, 0, len(codec.TargetColumns))
	for j, target := range codec.TargetColumns {
		enc, _ := vocab.Encoder(target)
		report, err := metrics.ClassificationReport(columnCodes(Y, j), pred[j], nil, enc.Classes())
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate %s", target)
		}
		ev := TargetEvaluation{Target: target, Report: report}
		if j < len(estimators) {
			ev.Importances = rankImportances(featureNames, estimators[j].GetFeatureImportances())
		}
		out = append(out, ev)
	}
	return out, nil
}

// rankImportances pairs names with importances, highest first, dropping zeros.
func rankImportances(names []string, importances []float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(importances))
	for i, v := range importances {
		if v <= 0 {
			continue
		}
		name := ""
		if i < len(names) {
			name = names[i]
		}
		out = append(out, FeatureImportance{Feature: name, Importance: v})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

// crossValidate scores fresh pipelines on stratified folds of the first target.
// A fold's score is the mean per-target accuracy.
func crossValidate(ds *Dataset, Y *mat.Dense, opts Options) (*CrossValidation, error) {
	splitter := model_selection.NewStratifiedKFold(opts.CVFolds, true, uint64(opts.Seed))
	res, err := model_selection.CrossValidate(splitter, len(ds.X), columnCodes(Y, 0), func(train, test []int) (float64, error) {
		p := newPipeline(opts)
		if err := p.Fit(model_selection.TakeStrings(ds.X, train), model_selection.TakeRows(Y, train)); err != nil {
			return 0, err
		}
		pred, err := predictCodes(p, model_selection.TakeStrings(ds.X, test))
		if err != nil {
			return 0, err
		}
		Yt := model_selection.TakeRows(Y, test)
		score := 0.0
		for j := range pred {
			truth := columnCodes(Yt, j)
			correct := 0
			for i := range truth {
				if truth[i] == pred[j][i] {
					correct++
				}
			}
			score += float64(correct) / float64(len(truth))
		}
		return score / float64(len(pred)), nil
	})
	if err != nil {
		return nil, err
	}
	return &CrossValidation{
		Folds:  opts.CVFolds,
		Scores: res.TestScores,
		Mean:   res.GetMeanScore(),
		Std:    res.GetStdScore(),
	}, nil
}
