// internal/inference/inference.go
package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX tensor names the exported classifier uses.
const (
	InputName  = "input"
	OutputName = "output"
)

// Inference wraps an ONNX runtime session for thread-safe inference.
// It implements the InferenceEngine interface.
type Inference struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	numClasses int64
}

// New creates a new Inference instance by loading the ONNX model from modelPath.
// numClasses is the length of the model's output vector.
func New(modelPath string, numClasses int) (*Inference, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("invalid number of classes: %d", numClasses)
	}

	// Initialize the ONNX runtime environment
	err := ort.InitializeEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{InputName},
		[]string{OutputName},
		nil, // Use default session options
	)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Inference{
		session:    session,
		numClasses: int64(numClasses),
	}, nil
}

// Predict runs the observation as a batch of one and returns the logits.
func (inf *Inference) Predict(input []float32, c, h, w int64) ([]float32, error) {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session == nil {
		return nil, fmt.Errorf("inference session is nil")
	}

	if int64(len(input)) != c*h*w {
		return nil, fmt.Errorf("observation has wrong size: got %d, expected %d", len(input), c*h*w)
	}

	// Create input tensor with shape [1, C, H, W]
	inputTensor, err := ort.NewTensor(ort.NewShape(1, c, h, w), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// Create output tensor with shape [1, numClasses]
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, inf.numClasses))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = inf.session.Run(
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
	)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	// The tensor's backing memory is freed by Destroy, so copy it out.
	out := make([]float32, inf.numClasses)
	copy(out, outputTensor.GetData())
	return out, nil
}

// Close releases the ONNX session resources
func (inf *Inference) Close() error {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session != nil {
		err := inf.session.Destroy()
		inf.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}

	return ort.DestroyEnvironment()
}

// Ensure Inference implements InferenceEngine at compile time
var _ InferenceEngine = (*Inference)(nil)
