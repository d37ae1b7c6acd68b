// internal/inference/native.go
package inference

import (
	"fmt"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/model"
)

// Native runs a loaded model in-process. The model is read-only after load,
// so Predict needs no locking.
type Native struct {
	model *model.Model
}

// NewNative wraps a loaded model as an InferenceEngine.
func NewNative(m *model.Model) *Native {
	return &Native{model: m}
}

// Predict forwards the observation through the loaded model.
func (n *Native) Predict(input []float32, c, h, w int64) ([]float32, error) {
	if n.model == nil {
		return nil, fmt.Errorf("inference session is nil")
	}
	if int64(len(input)) != c*h*w {
		return nil, fmt.Errorf("observation has wrong size: got %d, expected %d", len(input), c*h*w)
	}

	logits, err := n.model.Forward(input, int(c), int(h), int(w))
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return logits, nil
}

// Close is a no-op; the model is released with the process.
func (n *Native) Close() error {
	return nil
}

// Ensure Native implements InferenceEngine at compile time
var _ InferenceEngine = (*Native)(nil)
