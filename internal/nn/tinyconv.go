package nn

import (
	"fmt"
	"math/rand"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
)

const (
	tinyConvKernel = 3
	tinyConvStride = 2
	// DefaultFeatures is the conv width used when a spec leaves it unset.
	DefaultFeatures = 8
)

// TinyConv is conv3x3/2 -> ReLU -> global average pool -> dropout -> linear.
type TinyConv struct {
	spec     artifact.ArchSpec
	params   artifact.Weights
	training bool
	rng      *rand.Rand
}

func newTinyConv(spec artifact.ArchSpec) (*TinyConv, error) {
	if spec.Dropout < 0 || spec.Dropout >= 1 {
		return nil, fmt.Errorf("architecture %q: dropout must be in [0,1), got %v", spec.Name, spec.Dropout)
	}
	return &TinyConv{
		spec: spec,
		params: artifact.Weights{
			"body.conv.weight": artifact.NewTensor(spec.Features, spec.InChannels, tinyConvKernel, tinyConvKernel),
			"body.conv.bias":   artifact.NewTensor(spec.Features),
			"head.weight":      artifact.NewTensor(spec.NumClasses, spec.Features),
			"head.bias":        artifact.NewTensor(spec.NumClasses),
		},
		training: true,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

func (m *TinyConv) Spec() artifact.ArchSpec      { return m.spec }
func (m *TinyConv) Parameters() artifact.Weights { return m.params }
func (m *TinyConv) Eval()                        { m.training = false }
func (m *TinyConv) Training() bool               { return m.training }

func (m *TinyConv) Forward(input []float32, c, h, w int) ([]float32, error) {
	if err := checkInput(input, c, h, w, m.spec.InChannels); err != nil {
		return nil, err
	}

	x, oh, ow := conv2d(m.params["body.conv.weight"], m.params["body.conv.bias"], input, c, h, w, tinyConvStride)
	relu(x)
	features := globalAvgPool(x, m.spec.Features, oh, ow)
	if m.training {
		dropout(features, m.spec.Dropout, m.rng)
	}
	return linear(m.params["head.weight"], m.params["head.bias"], features), nil
}

// Ensure TinyConv implements Architecture at compile time
var _ Architecture = (*TinyConv)(nil)
