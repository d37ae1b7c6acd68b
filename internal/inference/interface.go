// internal/inference/interface.go
package inference

// InferenceEngine defines the interface for running a forward pass on one image.
// This abstraction allows for easy mocking in tests and swapping implementations.
type InferenceEngine interface {
	// Predict runs a single flattened CHW observation and returns one logit per class.
	// input: flattened observation of length C*H*W
	// c, h, w: channel, height, width dimensions
	Predict(input []float32, c, h, w int64) ([]float32, error)

	// Close releases any resources held by the inference engine.
	Close() error
}
