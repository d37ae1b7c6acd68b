// Package artifact decodes and encodes serialized model artifacts.
//
// An artifact is a msgpack document in one of three shapes. Decode inspects the
// document once and reports which shape it found, so callers switch on Kind
// instead of probing fields themselves.
package artifact

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind identifies the shape of a decoded artifact.
type Kind int

const (
	// KindUnknown is the zero value and never returned by a successful Decode.
	KindUnknown Kind = iota
	// KindWeightsContainer holds trained weights under the "model" field for an
	// architecture built separately by the caller.
	KindWeightsContainer
	// KindFullLearner carries its own architecture spec, vocab and weights.
	KindFullLearner
	// KindRawWeights is a bare mapping of parameter name to tensor.
	KindRawWeights
)

func (k Kind) String() string {
	switch k {
	case KindWeightsContainer:
		return "weights-container"
	case KindFullLearner:
		return "full-learner"
	case KindRawWeights:
		return "raw-weights"
	default:
		return "unknown"
	}
}

// Field names recognized at the top level of an artifact.
const (
	FieldModel   = "model"
	FieldArch    = "arch"
	FieldVocab   = "vocab"
	FieldWeights = "weights"
)

var (
	ErrEmpty        = errors.New("artifact is empty")
	ErrUnrecognized = errors.New("unrecognized artifact shape")
	ErrCorrupt      = errors.New("corrupt artifact")
)

// ArchSpec describes an architecture well enough to rebuild it.
type ArchSpec struct {
	Name       string  `msgpack:"name" mapstructure:"name"`
	InChannels int     `msgpack:"in_channels" mapstructure:"in_channels"`
	NumClasses int     `msgpack:"num_classes" mapstructure:"num_classes"`
	Features   int     `msgpack:"features" mapstructure:"features"`
	Dropout    float32 `msgpack:"dropout" mapstructure:"dropout"`
}

// Weights maps parameter names to tensors.
type Weights map[string]*Tensor

// Artifact is the decoded form of a model artifact. Which fields are set
// depends on Kind: Arch and Vocab only for KindFullLearner.
type Artifact struct {
	Kind    Kind
	Arch    *ArchSpec
	Vocab   []string
	Weights Weights
}

type learner struct {
	Arch    *ArchSpec `msgpack:"arch"`
	Vocab   []string  `msgpack:"vocab"`
	Weights Weights   `msgpack:"weights"`
}

// Decode parses data and classifies it. The checks run in a fixed order and
// the first matching shape wins: a "model" field makes a weights container,
// "arch" plus "weights" makes a full learner, and a document whose every value
// is a tensor is a raw weight mapping.
func Decode(data []byte) (*Artifact, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var top map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(top) == 0 {
		return nil, ErrUnrecognized
	}

	if raw, ok := top[FieldModel]; ok {
		var w Weights
		if err := msgpack.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w: %q field: %v", ErrCorrupt, FieldModel, err)
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %q field: %v", ErrCorrupt, FieldModel, err)
		}
		return &Artifact{Kind: KindWeightsContainer, Weights: w}, nil
	}

	_, hasArch := top[FieldArch]
	_, hasWeights := top[FieldWeights]
	if hasArch && hasWeights {
		var l learner
		if err := msgpack.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("%w: learner: %v", ErrCorrupt, err)
		}
		if l.Arch == nil || l.Arch.Name == "" {
			return nil, fmt.Errorf("%w: learner has no architecture name", ErrCorrupt)
		}
		if err := l.Weights.Validate(); err != nil {
			return nil, fmt.Errorf("%w: learner weights: %v", ErrCorrupt, err)
		}
		return &Artifact{Kind: KindFullLearner, Arch: l.Arch, Vocab: l.Vocab, Weights: l.Weights}, nil
	}

	w := make(Weights, len(top))
	for name, raw := range top {
		t, err := decodeTensor(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: value %q is not a tensor", ErrUnrecognized, name)
		}
		w[name] = t
	}
	return &Artifact{Kind: KindRawWeights, Weights: w}, nil
}

func decodeTensor(raw msgpack.RawMessage) (*Tensor, error) {
	var fields map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if _, ok := fields["shape"]; !ok {
		return nil, errors.New("missing shape")
	}
	if _, ok := fields["data"]; !ok {
		return nil, errors.New("missing data")
	}
	var t Tensor
	if err := msgpack.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every tensor in the mapping.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return errors.New("no weights")
	}
	for name, t := range w {
		if t == nil {
			return fmt.Errorf("tensor %q is nil", name)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
	}
	return nil
}

// EncodeLearner serializes a full learner artifact.
func EncodeLearner(arch ArchSpec, vocab []string, w Weights) ([]byte, error) {
	return msgpack.Marshal(&learner{Arch: &arch, Vocab: vocab, Weights: w})
}

// EncodeContainer serializes a weights container. extra fields are written
// alongside "model" and ignored by Decode.
func EncodeContainer(w Weights, extra map[string]any) ([]byte, error) {
	doc := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		doc[k] = v
	}
	doc[FieldModel] = w
	return msgpack.Marshal(doc)
}

// EncodeRaw serializes a bare weight mapping.
func EncodeRaw(w Weights) ([]byte, error) {
	return msgpack.Marshal(w)
}
