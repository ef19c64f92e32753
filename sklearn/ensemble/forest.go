// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/core/parallel"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
	"github.com/vineetsista/Plant-Care-Assistant/sklearn/tree"
)

const (
	// MaxFeaturesSqrt draws floor(sqrt(n_features)) features per split.
	MaxFeaturesSqrt = "sqrt"
	// MaxFeaturesLog2 draws floor(log2(n_features)) features per split.
	MaxFeaturesLog2 = "log2"
	// MaxFeaturesAll considers every feature at every split.
	MaxFeaturesAll = "all"
)

// RandomForestClassifier はscikit-learn互換のランダムフォレスト分類器
// 各木は森のシードから導出した独自のシードを持つため、並列実行の順序に結果が依存しない
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	classWeight     string
	randomState     int64
	nJobs           int

	// Model parameters
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
}

// RandomForestOption is a functional option for RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a new RandomForestClassifier.
//
// 使用例:
//
//	rf := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(200),
//	    ensemble.WithClassWeight("balanced"),
//	    ensemble.WithRandomState(42),
//	)
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesSqrt,
		bootstrap:       true,
		classWeight:     tree.ClassWeightNone,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of every tree. Values <= 0 mean unlimited.
func WithMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum samples in a leaf.
func WithMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the per-split feature sampling ("sqrt", "log2", "all").
func WithMaxFeatures(mode string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = mode
	}
}

// WithBootstrap toggles bootstrap resampling of the training rows.
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithClassWeight sets the class weighting ("balanced" or "none").
func WithClassWeight(weight string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.classWeight = weight
	}
}

// WithNJobs bounds the number of trees fitted concurrently. Values <= 0 use GOMAXPROCS.
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// WithRandomState sets the forest seed. A negative seed draws a random one.
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

func (rf *RandomForestClassifier) validateParams() error {
	if rf.nEstimators < 1 {
		return errors.NewValueError("RandomForestClassifier", fmt.Sprintf("n_estimators must be positive, got %d", rf.nEstimators))
	}
	switch rf.maxFeatures {
	case MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll:
	default:
		return errors.NewValueError("RandomForestClassifier", fmt.Sprintf("max_features must be 'sqrt', 'log2' or 'all', got %q", rf.maxFeatures))
	}
	if rf.classWeight != tree.ClassWeightBalanced && rf.classWeight != tree.ClassWeightNone {
		return errors.NewValueError("RandomForestClassifier", fmt.Sprintf("class_weight must be 'balanced' or 'none', got %q", rf.classWeight))
	}
	return nil
}

func (rf *RandomForestClassifier) featuresPerSplit(nFeatures int) int {
	var n int
	switch rf.maxFeatures {
	case MaxFeaturesSqrt:
		n = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		n = int(math.Log2(float64(nFeatures)))
	default:
		return nFeatures
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Fit trains the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if err := rf.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestClassifier.Fit", 1, yCols, 1)
	}

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "RandomForestClassifier")
	start := time.Now()

	labels := make([]int, nSamples)
	for i := range labels {
		labels[i] = int(y.At(i, 0))
	}
	classWeights := map[int]float64{}
	if rf.classWeight == tree.ClassWeightBalanced {
		classWeights = tree.BalancedClassWeights(labels)
	}

	seed := rf.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	maxFeatures := rf.featuresPerSplit(nFeatures)
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)

	err = parallel.Do(rf.nEstimators, rf.nJobs, "RandomForestClassifier.Fit", func(i int) error {
		weights := rf.sampleWeights(labels, classWeights, seeds[i])
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(maxFeatures),
			tree.WithRandomState(seeds[i]),
		)
		if err := dt.FitWeighted(X, y, weights); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		estimators[i] = dt
		return nil
	})
	if err != nil {
		return err
	}

	rf.estimators_ = estimators
	rf.classes_ = estimators[0].Classes()
	rf.nClasses_ = len(rf.classes_)
	rf.nFeatures_ = nFeatures
	rf.computeImportances()

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()

	logger.Debug("Forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, rf.nClasses_,
		log.RandomSeedKey, seed,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// sampleWeights returns the bootstrap multiplicity of each row times its class weight.
func (rf *RandomForestClassifier) sampleWeights(labels []int, classWeights map[int]float64, seed int64) []float64 {
	n := len(labels)
	weights := make([]float64, n)
	if rf.bootstrap {
		r := rand.New(rand.NewSource(seed))
		for k := 0; k < n; k++ {
			weights[r.Intn(n)]++
		}
	} else {
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(classWeights) > 0 {
		for i, l := range labels {
			weights[i] *= classWeights[l]
		}
	}
	return weights
}

func (rf *RandomForestClassifier) computeImportances() {
	rf.featureImportances_ = make([]float64, rf.nFeatures_)
	for _, est := range rf.estimators_ {
		floats.Add(rf.featureImportances_, est.GetFeatureImportances())
	}
	if sum := floats.Sum(rf.featureImportances_); sum > 0 {
		floats.Scale(1/sum, rf.featureImportances_)
	}
}

// PredictProba averages the class distributions of all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != rf.nFeatures_ {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.nFeatures_, nFeatures, 1)
	}

	sum := mat.NewDense(nSamples, rf.nClasses_, nil)
	for _, est := range rf.estimators_ {
		p, err := est.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := proba.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, rf.nClasses_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, proba)
		pred.Set(i, 0, float64(rf.classes_[floats.MaxIdx(row)]))
	}
	return pred, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
	if err != nil {
		return 0.0
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted class labels seen during fitting.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators_
}

// GetFeatureImportances returns the normalized mean impurity decrease per feature.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.CloneableClassifier {
	c := NewRandomForestClassifier()
	_ = c.SetParams(rf.GetParams())
	return c
}

// GetParams returns the model hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"class_weight":      rf.classWeight,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets the model hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = cast.ToIntE(value)
		case "criterion":
			rf.criterion, err = cast.ToStringE(value)
		case "max_depth":
			rf.maxDepth, err = cast.ToIntE(value)
		case "min_samples_split":
			rf.minSamplesSplit, err = cast.ToIntE(value)
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = cast.ToIntE(value)
		case "max_features":
			rf.maxFeatures, err = cast.ToStringE(value)
		case "bootstrap":
			rf.bootstrap, err = cast.ToBoolE(value)
		case "class_weight":
			rf.classWeight, err = cast.ToStringE(value)
		case "random_state":
			rf.randomState, err = cast.ToInt64E(value)
		case "n_jobs":
			rf.nJobs, err = cast.ToIntE(value)
		default:
			return errors.NewValueError("RandomForestClassifier.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
		if err != nil {
			return errors.Wrapf(err, "parameter %s", key)
		}
	}
	return nil
}

type forestSnapshot struct {
	Params      map[string]string
	Estimators  []*tree.DecisionTreeClassifier
	Classes     []int
	NFeatures   int
	Importances []float64
	State       model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	params := make(map[string]string)
	for k, v := range rf.GetParams() {
		params[k] = cast.ToString(v)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(forestSnapshot{
		Params:      params,
		Estimators:  rf.estimators_,
		Classes:     rf.classes_,
		NFeatures:   rf.nFeatures_,
		Importances: rf.featureImportances_,
		State:       rf.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "RandomForestClassifier.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var s forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "RandomForestClassifier.GobDecode")
	}
	restored := NewRandomForestClassifier()
	params := make(map[string]interface{}, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	if err := restored.SetParams(params); err != nil {
		return errors.Wrap(err, "RandomForestClassifier.GobDecode")
	}
	restored.estimators_ = s.Estimators
	restored.classes_ = s.Classes
	restored.nClasses_ = len(s.Classes)
	restored.nFeatures_ = s.NFeatures
	restored.featureImportances_ = s.Importances
	restored.state.SetState(s.State)
	*rf = *restored
	return nil
}

func init() {
	gob.Register(&RandomForestClassifier{})
}
