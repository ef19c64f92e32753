// Package tree provides a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/core/model"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

const (
	// CriterionGini はジニ不純度
	CriterionGini = "gini"
	// CriterionEntropy は情報エントロピー
	CriterionEntropy = "entropy"

	// ClassWeightBalanced weights classes by n_samples / (n_classes * count).
	ClassWeightBalanced = "balanced"
	// ClassWeightNone leaves every sample with weight 1.
	ClassWeightNone = "none"

	featureThreshold = 1e-7
	impurityEpsilon  = 1e-12
	leafFeature      = -1
)

// node is one entry of the flattened tree. Leaves have Feature == -1.
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // weighted class distribution, sums to 1
	Impurity  float64
	NSamples  int
	Weight    float64
	Depth     int
}

// DecisionTreeClassifier is a CART classifier over numeric features.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // <= 0 means all features
	classWeight     string
	randomState     int64

	// Model parameters
	nodes               []node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64

	rand *rand.Rand
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier.
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new DecisionTreeClassifier.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		classWeight:     ClassWeightNone,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	dt.resetRand()
	return dt
}

func (dt *DecisionTreeClassifier) resetRand() {
	if dt.randomState >= 0 {
		dt.rand = rand.New(rand.NewSource(dt.randomState))
	} else {
		dt.rand = rand.New(rand.NewSource(rand.Int63()))
	}
}

// WithCriterion sets the split quality measure ("gini" or "entropy").
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth. Values <= 0 mean unlimited.
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are drawn at each split. Values <= 0 mean all.
func WithMaxFeatures(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithClassWeight sets the class weighting ("balanced" or "none").
func WithClassWeight(weight string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.classWeight = weight
	}
}

// WithRandomState sets the seed used for feature sampling.
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// Fit trains the tree with unit sample weights (adjusted by class_weight).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted trains the tree with per-sample weights. Samples with zero
// weight do not reach any node but their labels still define the class set,
// which keeps bootstrap replicas of a forest aligned on the same columns.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.validateParams(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	dt.extractClasses(y)
	dt.nFeatures_ = nFeatures
	dt.resetRand()

	// y をクラスインデックスに変換
	classIndex := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}
	yIdx := make([]int, nSamples)
	labels := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		labels[i] = int(y.At(i, 0))
		yIdx[i] = classIndex[labels[i]]
	}

	weights := make([]float64, nSamples)
	for i := range weights {
		weights[i] = 1.0
		if sampleWeight != nil {
			weights[i] = sampleWeight[i]
		}
	}
	if dt.classWeight == ClassWeightBalanced {
		cw := BalancedClassWeights(labels)
		for i := range weights {
			weights[i] *= cw[labels[i]]
		}
	}

	samples := make([]int, 0, nSamples)
	for i, w := range weights {
		if w < 0 {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("negative sample weight at row %d", i))
		}
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	b := &builder{
		dt:       dt,
		X:        X,
		y:        yIdx,
		weights:  weights,
		features: make([]int, nFeatures),
	}
	for j := range b.features {
		b.features[j] = j
	}
	dt.nodes = dt.nodes[:0]
	dt.featureImportances_ = make([]float64, nFeatures)
	b.build(samples, 0)
	dt.normalizeImportances()

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

func (dt *DecisionTreeClassifier) validateParams() error {
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValueError("DecisionTreeClassifier", fmt.Sprintf("criterion must be 'gini' or 'entropy', got %q", dt.criterion))
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValueError("DecisionTreeClassifier", "min_samples_split must be at least 2")
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValueError("DecisionTreeClassifier", "min_samples_leaf must be at least 1")
	}
	if dt.classWeight != ClassWeightBalanced && dt.classWeight != ClassWeightNone {
		return errors.NewValueError("DecisionTreeClassifier", fmt.Sprintf("class_weight must be 'balanced' or 'none', got %q", dt.classWeight))
	}
	return nil
}

// extractClasses identifies unique class labels
func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}
	dt.classes_ = make([]int, 0, len(classMap))
	for class := range classMap {
		dt.classes_ = append(dt.classes_, class)
	}
	sort.Ints(dt.classes_)
	dt.nClasses_ = len(dt.classes_)
}

// BalancedClassWeights returns n_samples / (n_classes * count(c)) for each class c.
func BalancedClassWeights(labels []int) map[int]float64 {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	weights := make(map[int]float64, len(counts))
	n := float64(len(labels))
	k := float64(len(counts))
	for c, cnt := range counts {
		weights[c] = n / (k * float64(cnt))
	}
	return weights
}

func (dt *DecisionTreeClassifier) impurity(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	imp := 0.0
	switch dt.criterion {
	case CriterionEntropy:
		for _, w := range dist {
			if w > 0 {
				p := w / total
				imp -= p * math.Log2(p)
			}
		}
	default:
		imp = 1.0
		for _, w := range dist {
			p := w / total
			imp -= p * p
		}
	}
	return imp
}

// builder grows the tree depth-first.
type builder struct {
	dt       *DecisionTreeClassifier
	X        mat.Matrix
	y        []int
	weights  []float64
	features []int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	dist := make([]float64, dt.nClasses_)
	total := 0.0
	for _, i := range samples {
		dist[b.y[i]] += b.weights[i]
		total += b.weights[i]
	}
	imp := dt.impurity(dist, total)

	id := len(dt.nodes)
	value := make([]float64, len(dist))
	copy(value, dist)
	if total > 0 {
		floats.Scale(1/total, value)
	}
	dt.nodes = append(dt.nodes, node{
		Feature:  leafFeature,
		Left:     -1,
		Right:    -1,
		Value:    value,
		Impurity: imp,
		NSamples: len(samples),
		Weight:   total,
		Depth:    depth,
	})

	n := len(samples)
	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		imp <= impurityEpsilon {
		return id
	}

	best, ok := b.bestSplit(samples, dist, total, imp)
	if !ok {
		return id
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range samples {
		if b.X.At(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	dt.featureImportances_[best.feature] += best.gain * total

	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)

	nd := &dt.nodes[id]
	nd.Feature = best.feature
	nd.Threshold = best.threshold
	nd.Left = leftID
	nd.Right = rightID
	return id
}

// candidateFeatures returns the features examined at one node.
func (b *builder) candidateFeatures() []int {
	dt := b.dt
	if dt.maxFeatures <= 0 || dt.maxFeatures >= len(b.features) {
		return b.features
	}
	perm := dt.rand.Perm(len(b.features))
	return perm[:dt.maxFeatures]
}

// bestSplit searches every candidate threshold. Zero-gain splits of an
// impure node are accepted; ties keep the first split found.
func (b *builder) bestSplit(samples []int, dist []float64, total, parentImp float64) (split, bool) {
	dt := b.dt
	best := split{gain: math.Inf(-1)}
	found := false

	sorted := make([]int, len(samples))
	left := make([]float64, dt.nClasses_)
	right := make([]float64, dt.nClasses_)

	for _, f := range b.candidateFeatures() {
		copy(sorted, samples)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})

		for k := range left {
			left[k] = 0
		}
		copy(right, dist)
		wLeft := 0.0

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			left[b.y[i]] += b.weights[i]
			right[b.y[i]] -= b.weights[i]
			wLeft += b.weights[i]

			cur := b.X.At(i, f)
			next := b.X.At(sorted[pos+1], f)
			if next <= cur+featureThreshold {
				continue
			}
			nLeft := pos + 1
			nRight := len(sorted) - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			wRight := total - wLeft
			gain := parentImp -
				(wLeft/total)*dt.impurity(left, wLeft) -
				(wRight/total)*dt.impurity(right, wRight)
			if gain > best.gain {
				best = split{feature: f, threshold: (cur + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (dt *DecisionTreeClassifier) normalizeImportances() {
	sum := floats.Sum(dt.featureImportances_)
	if sum > 0 {
		floats.Scale(1/sum, dt.featureImportances_)
	}
}

func (dt *DecisionTreeClassifier) leaf(row []float64) *node {
	id := 0
	for dt.nodes[id].Feature != leafFeature {
		nd := &dt.nodes[id]
		if row[nd.Feature] <= nd.Threshold {
			id = nd.Left
		} else {
			id = nd.Right
		}
	}
	return &dt.nodes[id]
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if !dt.state.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	_, nFeatures := X.Dims()
	if nFeatures != dt.nFeatures_ {
		return errors.NewDimensionError("DecisionTreeClassifier."+method, dt.nFeatures_, nFeatures, 1)
	}
	return nil
}

// PredictProba returns the leaf class distribution for each sample.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	proba := mat.NewDense(nSamples, dt.nClasses_, nil)
	row := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		proba.SetRow(i, dt.leaf(row).Value)
	}
	return proba, nil
}

// Predict returns the class label with the highest leaf probability.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		pred.Set(i, 0, float64(dt.classes_[floats.MaxIdx(dt.leaf(row).Value)]))
	}
	return pred, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, nd := range dt.nodes {
		if nd.Depth > depth {
			depth = nd.Depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for _, nd := range dt.nodes {
		if nd.Feature == leafFeature {
			n++
		}
	}
	return n
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

// Clone returns an unfitted tree with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.CloneableClassifier {
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
		WithMaxFeatures(dt.maxFeatures),
		WithClassWeight(dt.classWeight),
		WithRandomState(dt.randomState),
	)
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"class_weight":      dt.classWeight,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = cast.ToStringE(value)
		case "max_depth":
			dt.maxDepth, err = cast.ToIntE(value)
		case "min_samples_split":
			dt.minSamplesSplit, err = cast.ToIntE(value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = cast.ToIntE(value)
		case "max_features":
			dt.maxFeatures, err = cast.ToIntE(value)
		case "class_weight":
			dt.classWeight, err = cast.ToStringE(value)
		case "random_state":
			dt.randomState, err = cast.ToInt64E(value)
			dt.resetRand()
		default:
			return errors.NewValueError("DecisionTreeClassifier.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
		if err != nil {
			return errors.Wrapf(err, "parameter %s", key)
		}
	}
	return nil
}

type treeSnapshot struct {
	Params      map[string]string
	Nodes       []node
	Classes     []int
	NFeatures   int
	Importances []float64
	State       model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	params := make(map[string]string)
	for k, v := range dt.GetParams() {
		params[k] = cast.ToString(v)
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeSnapshot{
		Params:      params,
		Nodes:       dt.nodes,
		Classes:     dt.classes_,
		NFeatures:   dt.nFeatures_,
		Importances: dt.featureImportances_,
		State:       dt.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "DecisionTreeClassifier.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var s treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "DecisionTreeClassifier.GobDecode")
	}
	restored := NewDecisionTreeClassifier()
	params := make(map[string]interface{}, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	if err := restored.SetParams(params); err != nil {
		return errors.Wrap(err, "DecisionTreeClassifier.GobDecode")
	}
	restored.nodes = s.Nodes
	restored.classes_ = s.Classes
	restored.nClasses_ = len(s.Classes)
	restored.nFeatures_ = s.NFeatures
	restored.featureImportances_ = s.Importances
	restored.state.SetState(s.State)
	*dt = *restored
	return nil
}

func init() {
	gob.Register(&DecisionTreeClassifier{})
}
