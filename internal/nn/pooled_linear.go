package nn

import "github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"

// PooledLinear averages each input channel and feeds the result to a linear head.
type PooledLinear struct {
	spec     artifact.ArchSpec
	params   artifact.Weights
	training bool
}

func newPooledLinear(spec artifact.ArchSpec) *PooledLinear {
	return &PooledLinear{
		spec: spec,
		params: artifact.Weights{
			"head.weight": artifact.NewTensor(spec.NumClasses, spec.InChannels),
			"head.bias":   artifact.NewTensor(spec.NumClasses),
		},
		training: true,
	}
}

func (m *PooledLinear) Spec() artifact.ArchSpec      { return m.spec }
func (m *PooledLinear) Parameters() artifact.Weights { return m.params }
func (m *PooledLinear) Eval()                        { m.training = false }
func (m *PooledLinear) Training() bool               { return m.training }

func (m *PooledLinear) Forward(input []float32, c, h, w int) ([]float32, error) {
	if err := checkInput(input, c, h, w, m.spec.InChannels); err != nil {
		return nil, err
	}
	return linear(m.params["head.weight"], m.params["head.bias"], globalAvgPool(input, c, h, w)), nil
}

var _ Architecture = (*PooledLinear)(nil)
