package nn

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
)

func TestBuild_UnknownArchitecture(t *testing.T) {
	_, err := Build(artifact.ArchSpec{Name: "resnet9000", NumClasses: 2})
	if !errors.Is(err, ErrUnknownArchitecture) {
		t.Fatalf("Expected ErrUnknownArchitecture, got %v", err)
	}
}

func TestBuild_RejectsBadSpecs(t *testing.T) {
	specs := []artifact.ArchSpec{
		{Name: PooledLinearName},
		{Name: TinyConvName, NumClasses: 2, Dropout: 1},
	}
	for _, spec := range specs {
		if _, err := Build(spec); err == nil {
			t.Errorf("Expected error for spec %+v", spec)
		}
	}
}

func TestBuild_ParameterShapes(t *testing.T) {
	arch, err := Build(artifact.ArchSpec{Name: TinyConvName, NumClasses: 2, Features: 4})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := map[string][]int{
		"body.conv.weight": {4, 3, 3, 3},
		"body.conv.bias":   {4},
		"head.weight":      {2, 4},
		"head.bias":        {2},
	}
	params := arch.Parameters()
	if len(params) != len(want) {
		t.Fatalf("Expected %d parameters, got %d", len(want), len(params))
	}
	for name, shape := range want {
		if !slices.Equal(params[name].Shape, shape) {
			t.Errorf("%s shape = %v, expected %v", name, params[name].Shape, shape)
		}
	}
	if !arch.Training() {
		t.Error("Expected a fresh architecture to be in training mode")
	}
}

func TestBind_CopiesWeights(t *testing.T) {
	arch, _ := Build(artifact.ArchSpec{Name: PooledLinearName, NumClasses: 2})
	weights := artifact.Weights{
		"head.weight": {Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
		"head.bias":   {Shape: []int{2}, Data: []float32{-1, 1}},
	}

	if err := Bind(arch, weights); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	got := Snapshot(arch)
	for name, w := range weights {
		if !slices.Equal(got[name].Data, w.Data) {
			t.Errorf("%s = %v, expected %v", name, got[name].Data, w.Data)
		}
	}

	// The architecture owns its copy.
	weights["head.bias"].Data[0] = 100
	if arch.Parameters()["head.bias"].Data[0] != -1 {
		t.Error("Expected Bind to copy, not alias, the source tensors")
	}
}

func TestBind_AllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		weights artifact.Weights
		want    error
	}{
		{"missing key", artifact.Weights{
			"head.weight": {Shape: []int{2, 3}, Data: make([]float32, 6)},
		}, ErrMissingParameter},
		{"unexpected key", artifact.Weights{
			"head.weight": {Shape: []int{2, 3}, Data: []float32{1, 1, 1, 1, 1, 1}},
			"head.bias":   {Shape: []int{2}, Data: []float32{1, 1}},
			"body.extra":  {Shape: []int{1}, Data: []float32{1}},
		}, ErrUnexpectedParameter},
		{"wrong shape", artifact.Weights{
			"head.weight": {Shape: []int{3, 2}, Data: []float32{1, 1, 1, 1, 1, 1}},
			"head.bias":   {Shape: []int{2}, Data: []float32{1, 1}},
		}, ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch, _ := Build(artifact.ArchSpec{Name: PooledLinearName, NumClasses: 2})
			err := Bind(arch, tt.weights)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			for name, p := range arch.Parameters() {
				for _, v := range p.Data {
					if v != 0 {
						t.Fatalf("Expected %s to stay zeroed after failed bind", name)
					}
				}
			}
		})
	}
}

func TestPooledLinear_Forward(t *testing.T) {
	arch, _ := Build(artifact.ArchSpec{Name: PooledLinearName, NumClasses: 2})
	err := Bind(arch, artifact.Weights{
		"head.weight": {Shape: []int{2, 3}, Data: []float32{1, 0, 0, 0, 0, 1}},
		"head.bias":   {Shape: []int{2}, Data: []float32{0.5, 0}},
	})
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	// 3 channels of 2x2: channel means are 1, 2, 3.
	input := []float32{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3}
	logits, err := arch.Forward(input, 3, 2, 2)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !slices.Equal(logits, []float32{1.5, 3}) {
		t.Errorf("Logits = %v, expected [1.5 3]", logits)
	}
}

func TestForward_InputShape(t *testing.T) {
	arch, _ := Build(artifact.ArchSpec{Name: TinyConvName, NumClasses: 2})
	if _, err := arch.Forward(make([]float32, 10), 3, 2, 2); !errors.Is(err, ErrInputShape) {
		t.Errorf("Expected ErrInputShape for short input, got %v", err)
	}
	if _, err := arch.Forward(make([]float32, 8), 2, 2, 2); !errors.Is(err, ErrInputShape) {
		t.Errorf("Expected ErrInputShape for wrong channels, got %v", err)
	}
}

func TestConv2d_Identity(t *testing.T) {
	// A centred 1 in a 3x3 kernel with stride 1 reproduces the input.
	weight := &artifact.Tensor{Shape: []int{1, 1, 3, 3}, Data: []float32{0, 0, 0, 0, 1, 0, 0, 0, 0}}
	bias := &artifact.Tensor{Shape: []int{1}, Data: []float32{0}}
	input := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}

	out, oh, ow := conv2d(weight, bias, input, 1, 3, 3, 1)
	if oh != 3 || ow != 3 {
		t.Fatalf("Output size = %dx%d, expected 3x3", oh, ow)
	}
	if !slices.Equal(out, input) {
		t.Errorf("Output = %v, expected %v", out, input)
	}
}

func TestTinyConv_EvalIsDeterministic(t *testing.T) {
	arch, _ := Build(artifact.ArchSpec{Name: TinyConvName, NumClasses: 2, Features: 4, Dropout: 0.5})
	for _, p := range arch.Parameters() {
		for i := range p.Data {
			p.Data[i] = float32(math.Sin(float64(i + 1)))
		}
	}
	arch.Eval()

	input := make([]float32, 3*16*16)
	for i := range input {
		input[i] = float32(i%7) / 7
	}

	first, err := arch.Forward(input, 3, 16, 16)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		next, _ := arch.Forward(input, 3, 16, 16)
		if !slices.Equal(first, next) {
			t.Fatalf("Run %d differs: %v vs %v", i, next, first)
		}
	}
}

func TestSameStructure(t *testing.T) {
	base := artifact.ArchSpec{Name: TinyConvName, InChannels: 3, NumClasses: 2, Features: 8, Dropout: 0.5}

	same := base
	same.Dropout = 0
	same.InChannels = 0
	if !SameStructure(base, same) {
		t.Error("Expected dropout and defaulted channels to be ignored")
	}

	wider := base
	wider.Features = 16
	if SameStructure(base, wider) {
		t.Error("Expected different feature width to differ")
	}

	other := base
	other.Name = PooledLinearName
	if SameStructure(base, other) {
		t.Error("Expected different names to differ")
	}
}
