package predictor

import (
	"math"
	"sort"
)

// Prediction is the probability assigned to one label.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"confidence"`
}

// Distribution is a categorical distribution over the label set, in label-set
// order. A nil Distribution means no image was supplied.
type Distribution []Prediction

// Map returns label -> probability.
func (d Distribution) Map() map[string]float64 {
	if d == nil {
		return nil
	}
	m := make(map[string]float64, len(d))
	for _, p := range d {
		m[p.Label] = p.Probability
	}
	return m
}

// Top returns the n most probable entries, highest first. Ties keep label-set
// order. n <= 0 or n larger than the set returns every entry.
func (d Distribution) Top(n int) Distribution {
	if d == nil {
		return nil
	}
	sorted := make(Distribution, len(d))
	copy(sorted, d)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Probability > sorted[j].Probability
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Best returns the most probable entry. ok is false for an empty distribution.
func (d Distribution) Best() (Prediction, bool) {
	if len(d) == 0 {
		return Prediction{}, false
	}
	return d.Top(1)[0], true
}

// softmax turns logits into probabilities. The max logit is subtracted first
// so large logits do not overflow.
func softmax(logits []float32) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, float64(v))
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
