package model

import (
	"fmt"
	"strings"
)

// ClassMetrics holds per-class evaluation results.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation holds held-out split metrics for a trained pipeline.
type Evaluation struct {
	// Fraud-class headline metrics.
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`

	// Confusion matrix (fraud = positive class).
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`

	// Per-class breakdown: index 0 legitimate, 1 fraud.
	Classes [2]ClassMetrics `json:"classes"`

	ElapsedMs int64 `json:"elapsedMs"`
}

// Evaluate computes metrics from predicted probabilities and true labels,
// classifying at 0.5 for the diagnostic report.
func Evaluate(probs []float64, labels []int) *Evaluation {
	e := &Evaluation{}

	for i, p := range probs {
		predicted := p >= 0.5
		actual := labels[i] == 1

		switch {
		case predicted && actual:
			e.TruePositives++
		case predicted && !actual:
			e.FalsePositives++
		case !predicted && !actual:
			e.TrueNegatives++
		default:
			e.FalseNegatives++
		}
	}

	// Fraud class
	e.Precision = ratio(e.TruePositives, e.TruePositives+e.FalsePositives)
	e.Recall = ratio(e.TruePositives, e.TruePositives+e.FalseNegatives)
	e.F1 = f1(e.Precision, e.Recall)
	e.Classes[1] = ClassMetrics{
		Precision: e.Precision,
		Recall:    e.Recall,
		F1:        e.F1,
		Support:   e.TruePositives + e.FalseNegatives,
	}

	// Legitimate class: negatives are the positives here.
	p0 := ratio(e.TrueNegatives, e.TrueNegatives+e.FalseNegatives)
	r0 := ratio(e.TrueNegatives, e.TrueNegatives+e.FalsePositives)
	e.Classes[0] = ClassMetrics{
		Precision: p0,
		Recall:    r0,
		F1:        f1(p0, r0),
		Support:   e.TrueNegatives + e.FalsePositives,
	}

	return e
}

// Report renders a classification report with per-class
// precision/recall/F1/support.
func (e *Evaluation) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	labels := [2]string{"legitimate", "fraud"}
	for c, name := range labels {
		m := e.Classes[c]
		fmt.Fprintf(&b, "%-12s %10.4f %10.4f %10.4f %10d\n", name, m.Precision, m.Recall, m.F1, m.Support)
	}

	total := e.Classes[0].Support + e.Classes[1].Support
	correct := e.TruePositives + e.TrueNegatives
	fmt.Fprintf(&b, "\n%-12s %10.4f %32d\n", "accuracy", ratio(correct, total), total)

	return b.String()
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
