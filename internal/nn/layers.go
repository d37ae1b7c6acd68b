package nn

import (
	"fmt"
	"math/rand"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/artifact"
)

// globalAvgPool averages each channel of a CHW tensor.
func globalAvgPool(x []float32, c, h, w int) []float32 {
	out := make([]float32, c)
	plane := h * w
	for ch := 0; ch < c; ch++ {
		var sum float64
		for _, v := range x[ch*plane : (ch+1)*plane] {
			sum += float64(v)
		}
		out[ch] = float32(sum / float64(plane))
	}
	return out
}

// linear computes weight·x + bias with weight shaped [out, in].
func linear(weight, bias *artifact.Tensor, x []float32) []float32 {
	out, in := weight.Shape[0], weight.Shape[1]
	y := make([]float32, out)
	for o := 0; o < out; o++ {
		acc := float64(bias.Data[o])
		row := weight.Data[o*in : (o+1)*in]
		for i, v := range row {
			acc += float64(v) * float64(x[i])
		}
		y[o] = float32(acc)
	}
	return y
}

// conv2d applies a [k, c, kh, kw] kernel with the given stride and zero padding
// of kh/2, returning the output and its spatial size.
func conv2d(weight, bias *artifact.Tensor, x []float32, c, h, w, stride int) ([]float32, int, int) {
	k, kh, kw := weight.Shape[0], weight.Shape[2], weight.Shape[3]
	pad := kh / 2
	oh := (h+2*pad-kh)/stride + 1
	ow := (w+2*pad-kw)/stride + 1
	out := make([]float32, k*oh*ow)

	for f := 0; f < k; f++ {
		kernel := weight.Data[f*c*kh*kw : (f+1)*c*kh*kw]
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				acc := float64(bias.Data[f])
				for ch := 0; ch < c; ch++ {
					for ky := 0; ky < kh; ky++ {
						iy := oy*stride + ky - pad
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < kw; kx++ {
							ix := ox*stride + kx - pad
							if ix < 0 || ix >= w {
								continue
							}
							acc += float64(kernel[(ch*kh+ky)*kw+kx]) * float64(x[(ch*h+iy)*w+ix])
						}
					}
				}
				out[(f*oh+oy)*ow+ox] = float32(acc)
			}
		}
	}
	return out, oh, ow
}

func relu(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// dropout zeroes each element with probability p and rescales the survivors.
func dropout(x []float32, p float32, rng *rand.Rand) {
	if p <= 0 {
		return
	}
	scale := 1 / (1 - p)
	for i := range x {
		if rng.Float32() < p {
			x[i] = 0
		} else {
			x[i] *= scale
		}
	}
}

func checkInput(input []float32, c, h, w, wantC int) error {
	if c != wantC {
		return fmt.Errorf("%w: expected %d channels, got %d", ErrInputShape, wantC, c)
	}
	if h <= 0 || w <= 0 {
		return fmt.Errorf("%w: invalid spatial size %dx%d", ErrInputShape, h, w)
	}
	if len(input) != c*h*w {
		return fmt.Errorf("%w: got %d values, expected %d", ErrInputShape, len(input), c*h*w)
	}
	return nil
}
