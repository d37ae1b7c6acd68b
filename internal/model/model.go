// Package model loads trained classifier artifacts into ready-to-serve models.
package model

import (
	"slices"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
	"github.com/SyedDaiam9101/fugazzeta-service/internal/nn"
)

// Model is a loaded classifier: an architecture in evaluation mode with its
// weights bound, plus the label set its outputs are ordered by.
// It is immutable and safe for concurrent Forward calls.
type Model struct {
	arch   nn.Architecture
	labels []string
	kind   artifact.Kind
	digest string
}

// Labels returns the label set in output order.
func (m *Model) Labels() []string { return slices.Clone(m.labels) }

// Kind reports which artifact shape the model was loaded from.
func (m *Model) Kind() artifact.Kind { return m.kind }

// Digest is the blake3 hex digest of the artifact bytes.
func (m *Model) Digest() string { return m.digest }

// Spec returns the architecture spec of the bound network.
func (m *Model) Spec() artifact.ArchSpec { return m.arch.Spec() }

// Weights returns a deep copy of the bound parameters.
func (m *Model) Weights() artifact.Weights { return nn.Snapshot(m.arch) }

// Forward runs one CHW image through the network and returns raw logits.
func (m *Model) Forward(input []float32, c, h, w int) ([]float32, error) {
	return m.arch.Forward(input, c, h, w)
}
