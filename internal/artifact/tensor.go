package artifact

import (
	"errors"
	"fmt"
	"slices"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int     `msgpack:"shape"`
	Data  []float32 `msgpack:"data"`
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float32, NumElements(shape))}
}

// NumElements returns the product of the dimensions, or 0 for an empty shape.
func NumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Validate checks that the shape is non-empty, positive and matches the data.
func (t *Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return errors.New("empty shape")
	}
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("invalid dimension %d in shape %v", d, t.Shape)
		}
	}
	if want := NumElements(t.Shape); len(t.Data) != want {
		return fmt.Errorf("shape %v needs %d values, got %d", t.Shape, want, len(t.Data))
	}
	return nil
}

// SameShape reports whether t and o have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	return slices.Equal(t.Shape, o.Shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}
