package nn

import (
	"math/rand"

	"github.com/hybridvit/hybridvit/ml"
)

// Dropout zeroes a random fraction of elements and rescales the
// survivors by 1/(1-rate). A nil rng disables dropout, which is the
// inference path.
type Dropout struct {
	Rate float32
}

func (m *Dropout) Forward(ctx ml.Context, t ml.Tensor, rng *rand.Rand) ml.Tensor {
	if m == nil || m.Rate <= 0 || rng == nil {
		return t
	}

	shape := t.Shape()
	n := 1
	for _, dim := range shape {
		n *= dim
	}

	scale := 1 / (1 - m.Rate)
	mask := make([]float32, n)
	for i := range mask {
		if rng.Float32() >= m.Rate {
			mask[i] = scale
		}
	}

	return t.Mul(ctx, ctx.FromFloats(mask, shape...))
}
