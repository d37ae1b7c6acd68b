package artifact

import (
	"errors"
	"slices"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func fixtureWeights() Weights {
	return Weights{
		"head.weight": {Shape: []int{2, 3}, Data: []float32{0.5, -1, 0.25, 1, 0, -0.5}},
		"head.bias":   {Shape: []int{2}, Data: []float32{0.1, -0.1}},
	}
}

func assertWeightsEqual(t *testing.T, got, want Weights) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d tensors, got %d", len(want), len(got))
	}
	for name, w := range want {
		g, ok := got[name]
		if !ok {
			t.Fatalf("Missing tensor %q", name)
		}
		if !slices.Equal(g.Shape, w.Shape) {
			t.Errorf("Tensor %q shape = %v, expected %v", name, g.Shape, w.Shape)
		}
		if !slices.Equal(g.Data, w.Data) {
			t.Errorf("Tensor %q data = %v, expected %v", name, g.Data, w.Data)
		}
	}
}

func TestDecode_WeightsContainer(t *testing.T) {
	data, err := EncodeContainer(fixtureWeights(), map[string]any{"opt": map[string]any{"lr": 0.001}})
	if err != nil {
		t.Fatalf("EncodeContainer failed: %v", err)
	}

	a, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if a.Kind != KindWeightsContainer {
		t.Fatalf("Expected %v, got %v", KindWeightsContainer, a.Kind)
	}
	if a.Arch != nil || a.Vocab != nil {
		t.Error("Expected no arch or vocab for a weights container")
	}
	assertWeightsEqual(t, a.Weights, fixtureWeights())
}

func TestDecode_FullLearner(t *testing.T) {
	spec := ArchSpec{Name: "pooled-linear", InChannels: 3, NumClasses: 2}
	data, err := EncodeLearner(spec, []string{"fugazzeta", "pizza"}, fixtureWeights())
	if err != nil {
		t.Fatalf("EncodeLearner failed: %v", err)
	}

	a, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if a.Kind != KindFullLearner {
		t.Fatalf("Expected %v, got %v", KindFullLearner, a.Kind)
	}
	if *a.Arch != spec {
		t.Errorf("Arch = %+v, expected %+v", *a.Arch, spec)
	}
	if !slices.Equal(a.Vocab, []string{"fugazzeta", "pizza"}) {
		t.Errorf("Unexpected vocab %v", a.Vocab)
	}
	assertWeightsEqual(t, a.Weights, fixtureWeights())
}

func TestDecode_RawWeights(t *testing.T) {
	data, err := EncodeRaw(fixtureWeights())
	if err != nil {
		t.Fatalf("EncodeRaw failed: %v", err)
	}

	a, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if a.Kind != KindRawWeights {
		t.Fatalf("Expected %v, got %v", KindRawWeights, a.Kind)
	}
	assertWeightsEqual(t, a.Weights, fixtureWeights())
}

func TestDecode_ContainerWinsOverLearnerFields(t *testing.T) {
	doc := map[string]any{
		FieldModel:   fixtureWeights(),
		FieldArch:    ArchSpec{Name: "tinyconv"},
		FieldWeights: Weights{"other": {Shape: []int{1}, Data: []float32{9}}},
	}
	data, err := msgpack.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	a, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if a.Kind != KindWeightsContainer {
		t.Errorf("Expected %v, got %v", KindWeightsContainer, a.Kind)
	}
}

func TestDecode_Errors(t *testing.T) {
	mustMarshal := func(v any) []byte {
		data, err := msgpack.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmpty},
		{"garbage", []byte("not msgpack at all"), ErrCorrupt},
		{"empty map", mustMarshal(map[string]any{}), ErrUnrecognized},
		{"no known fields", mustMarshal(map[string]any{"epoch": 3, "loss": 0.2}), ErrUnrecognized},
		{"arch without weights", mustMarshal(map[string]any{"arch": ArchSpec{Name: "tinyconv"}}), ErrUnrecognized},
		{"container with bad tensor", mustMarshal(map[string]any{
			"model": map[string]any{"w": Tensor{Shape: []int{2, 2}, Data: []float32{1}}},
		}), ErrCorrupt},
		{"learner without name", mustMarshal(map[string]any{
			"arch": ArchSpec{}, "weights": fixtureWeights(),
		}), ErrCorrupt},
		{"raw with bad shape", mustMarshal(map[string]any{
			"w": Tensor{Shape: []int{0}, Data: nil},
		}), ErrUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("Expected error, got artifact of kind %v", a.Kind)
			}
			if a != nil {
				t.Error("Expected nil artifact on error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTensor_Validate(t *testing.T) {
	if err := NewTensor(2, 3).Validate(); err != nil {
		t.Errorf("Expected valid tensor, got %v", err)
	}
	if err := (&Tensor{}).Validate(); err == nil {
		t.Error("Expected error for empty shape")
	}
	if err := (&Tensor{Shape: []int{3}, Data: []float32{1, 2}}).Validate(); err == nil {
		t.Error("Expected error for data length mismatch")
	}
}

func TestKind_String(t *testing.T) {
	if KindRawWeights.String() != "raw-weights" {
		t.Errorf("Unexpected string %q", KindRawWeights.String())
	}
	if Kind(42).String() != "unknown" {
		t.Errorf("Unexpected string %q", Kind(42).String())
	}
}
