// Package nn implements the small image classification architectures the
// service can run without an external runtime.
package nn

import (
	"errors"
	"fmt"
	"sort"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
)

// Architecture names understood by Build.
const (
	TinyConvName     = "tinyconv"
	PooledLinearName = "pooled-linear"
)

var (
	ErrUnknownArchitecture = errors.New("unknown architecture")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrUnexpectedParameter = errors.New("unexpected parameter")
	ErrShapeMismatch       = errors.New("parameter shape mismatch")
	ErrInputShape          = errors.New("input shape mismatch")
)

// Architecture is a classification network with named parameters.
//
// A freshly built architecture is in training mode. Eval switches it to
// evaluation mode permanently; after that Forward does not mutate any state
// and is safe for concurrent use.
type Architecture interface {
	// Spec returns the spec the architecture was built from.
	Spec() artifact.ArchSpec
	// Parameters returns the live parameter tensors keyed by name.
	Parameters() artifact.Weights
	// Forward maps one CHW image to one logit per class.
	Forward(input []float32, c, h, w int) ([]float32, error)
	// Eval disables training-only behaviour such as dropout.
	Eval()
	// Training reports whether training-only behaviour is active.
	Training() bool
}

// Build constructs an architecture with zeroed parameters from spec.
func Build(spec artifact.ArchSpec) (Architecture, error) {
	spec = withDefaults(spec)
	if spec.NumClasses <= 0 {
		return nil, fmt.Errorf("architecture %q: num_classes must be positive", spec.Name)
	}

	switch spec.Name {
	case TinyConvName:
		m, err := newTinyConv(spec)
		if err != nil {
			return nil, err
		}
		return m, nil
	case PooledLinearName:
		return newPooledLinear(spec), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchitecture, spec.Name)
	}
}

// SameStructure reports whether two specs describe architectures with the same
// parameter layout. Dropout is a training-time setting and is ignored.
func SameStructure(a, b artifact.ArchSpec) bool {
	a, b = withDefaults(a), withDefaults(b)
	if a.Name != b.Name || a.InChannels != b.InChannels || a.NumClasses != b.NumClasses {
		return false
	}
	return a.Name != TinyConvName || a.Features == b.Features
}

func withDefaults(spec artifact.ArchSpec) artifact.ArchSpec {
	if spec.InChannels <= 0 {
		spec.InChannels = 3
	}
	if spec.Name == TinyConvName && spec.Features <= 0 {
		spec.Features = DefaultFeatures
	}
	return spec
}

// Bind copies weights into arch. Every parameter must be present with the
// exact shape and no extra keys are allowed. All tensors are checked before
// any is copied, so on error arch is left untouched.
func Bind(arch Architecture, weights artifact.Weights) error {
	params := arch.Parameters()

	for _, name := range sortedNames(params) {
		src, ok := weights[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingParameter, name)
		}
		if src == nil || !params[name].SameShape(src) {
			var got []int
			if src != nil {
				got = src.Shape
			}
			return fmt.Errorf("%w: %q expects %v, got %v", ErrShapeMismatch, name, params[name].Shape, got)
		}
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrShapeMismatch, name, err)
		}
	}
	for _, name := range sortedNames(weights) {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnexpectedParameter, name)
		}
	}

	for name, dst := range params {
		copy(dst.Data, weights[name].Data)
	}
	return nil
}

// Snapshot returns a deep copy of the architecture's parameters.
func Snapshot(arch Architecture) artifact.Weights {
	params := arch.Parameters()
	out := make(artifact.Weights, len(params))
	for name, t := range params {
		out[name] = t.Clone()
	}
	return out
}

func sortedNames(w artifact.Weights) []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
