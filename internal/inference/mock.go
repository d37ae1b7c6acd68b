// internal/inference/mock.go
package inference

import (
	"fmt"
	"sync/atomic"
)

// MockInference is a mock implementation of InferenceEngine for testing.
// It returns deterministic logits without requiring a model or the ONNX shared library.
type MockInference struct {
	// Logits are returned for every observation
	Logits []float32
	// ShouldError if true, Predict will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string

	calls atomic.Int64
}

// NewMock creates a new MockInference for two classes favouring the second one.
func NewMock() *MockInference {
	return &MockInference{
		Logits: []float32{-1, 1},
	}
}

// NewMockWithLogits creates a MockInference returning custom logits
func NewMockWithLogits(logits []float32) *MockInference {
	return &MockInference{
		Logits: logits,
	}
}

// Predict validates the observation and returns Logits.
func (m *MockInference) Predict(input []float32, c, h, w int64) ([]float32, error) {
	m.calls.Add(1)

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return nil, fmt.Errorf("%s", m.ErrorMessage)
		}
		return nil, fmt.Errorf("mock inference error")
	}

	if c <= 0 || h <= 0 || w <= 0 {
		return nil, fmt.Errorf("invalid observation dimensions: %dx%dx%d", c, h, w)
	}
	if expected := c * h * w; int64(len(input)) != expected {
		return nil, fmt.Errorf("observation has wrong size: got %d, expected %d", len(input), expected)
	}

	out := make([]float32, len(m.Logits))
	copy(out, m.Logits)
	return out, nil
}

// CallCount returns the number of Predict calls so far.
func (m *MockInference) CallCount() int {
	return int(m.calls.Load())
}

// Close is a no-op for the mock implementation
func (m *MockInference) Close() error {
	return nil
}

// SetError configures the mock to return an error on the next Predict call
func (m *MockInference) SetError(msg string) {
	m.ShouldError = true
	m.ErrorMessage = msg
}

// ClearError clears any configured error
func (m *MockInference) ClearError() {
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Ensure MockInference implements InferenceEngine at compile time
var _ InferenceEngine = (*MockInference)(nil)
