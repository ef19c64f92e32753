// Package metrics provides classification evaluation metrics.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
)

func checkVectors(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 (1 - accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionMatrix returns counts with true labels on rows and predicted labels
// on columns, both ordered by labels. Pairs with a label outside labels are ignored.
func ConfusionMatrix(yTrue, yPred []int, labels []int) (*mat.Dense, error) {
	if len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range yTrue {
		r, ok1 := index[yTrue[i]]
		c, ok2 := index[yPred[i]]
		if ok1 && ok2 {
			cm.Set(r, c, cm.At(r, c)+1)
		}
	}
	return cm, nil
}

// PrecisionRecallFScoreSupport computes per-label precision, recall, F1 and
// support. An undefined ratio is set to 0 and reported through errors.Warn.
func PrecisionRecallFScoreSupport(yTrue, yPred []int, labels []int) (precision, recall, f1 []float64, support []int, err error) {
	if len(yTrue) == 0 {
		return nil, nil, nil, nil, errors.NewValueError("PrecisionRecallFScoreSupport", "empty input")
	}
	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	k := len(labels)
	precision = make([]float64, k)
	recall = make([]float64, k)
	f1 = make([]float64, k)
	support = make([]int, k)

	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		predicted := 0.0
		actual := 0.0
		for j := 0; j < k; j++ {
			predicted += cm.At(j, i)
			actual += cm.At(i, j)
		}
		support[i] = int(actual)

		if predicted > 0 {
			precision[i] = tp / predicted
		} else {
			errors.Warn(errors.NewUndefinedMetricWarning("precision",
				fmt.Sprintf("no predicted samples for label %d", labels[i]), 0))
		}
		if actual > 0 {
			recall[i] = tp / actual
		} else {
			errors.Warn(errors.NewUndefinedMetricWarning("recall",
				fmt.Sprintf("no true samples for label %d", labels[i]), 0))
		}
		if precision[i]+recall[i] > 0 {
			f1[i] = 2 * precision[i] * recall[i] / (precision[i] + recall[i])
		}
	}
	return precision, recall, f1, support, nil
}

// ClassReport holds the scores of one class.
type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// Report is a per-class classification report with accuracy and averages.
type Report struct {
	Classes     []ClassReport `json:"classes"`
	Accuracy    float64       `json:"accuracy"`
	MacroAvg    ClassReport   `json:"macro_avg"`
	WeightedAvg ClassReport   `json:"weighted_avg"`
	Support     int           `json:"support"`
}

// ClassificationReport builds a Report over labels, naming each label code
// by names[code]. When labels is nil the sorted union of codes in yTrue and
// yPred is used.
func ClassificationReport(yTrue, yPred []int, labels []int, names []string) (*Report, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("ClassificationReport", "empty input")
	}
	if labels == nil {
		labels = UniqueLabels(yTrue, yPred)
	}
	for _, l := range labels {
		if l < 0 || l >= len(names) {
			return nil, errors.NewInvalidCodeError(l, len(names))
		}
	}
	precision, recall, f1, support, err := PrecisionRecallFScoreSupport(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	r := &Report{
		Classes:     make([]ClassReport, len(labels)),
		Accuracy:    float64(correct) / float64(len(yTrue)),
		MacroAvg:    ClassReport{Label: "macro avg"},
		WeightedAvg: ClassReport{Label: "weighted avg"},
	}
	total := 0
	for i := range labels {
		r.Classes[i] = ClassReport{
			Label:     names[labels[i]],
			Precision: precision[i],
			Recall:    recall[i],
			F1:        f1[i],
			Support:   support[i],
		}
		total += support[i]
	}
	r.Support = total

	k := float64(len(labels))
	for _, c := range r.Classes {
		r.MacroAvg.Precision += c.Precision / k
		r.MacroAvg.Recall += c.Recall / k
		r.MacroAvg.F1 += c.F1 / k
		if total > 0 {
			w := float64(c.Support) / float64(total)
			r.WeightedAvg.Precision += c.Precision * w
			r.WeightedAvg.Recall += c.Recall * w
			r.WeightedAvg.F1 += c.F1 * w
		}
	}
	r.MacroAvg.Support = total
	r.WeightedAvg.Support = total
	return r, nil
}

// UniqueLabels returns the sorted distinct codes of all given slices.
func UniqueLabels(ys ...[]int) []int {
	seen := make(map[int]struct{})
	for _, y := range ys {
		for _, v := range y {
			seen[v] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// String renders the report in the familiar tabular text layout.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Support)
	for _, avg := range []ClassReport{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, avg.Label, avg.Precision, avg.Recall, avg.F1, avg.Support)
	}
	return b.String()
}
