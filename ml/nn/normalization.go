package nn

import (
	"fmt"

	"github.com/hybridvit/hybridvit/ml"
)

type LayerNorm struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

func (m *LayerNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}

type GroupNorm struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

// Forward normalizes groups of channels of t, laid out as
// (width, height, channels, batch). The channel count must be a
// multiple of groups.
func (m *GroupNorm) Forward(ctx ml.Context, t ml.Tensor, groups int, eps float32) ml.Tensor {
	w, h, c, n := t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3)
	if groups < 1 || c%groups != 0 {
		panic(fmt.Errorf("channels %d not divisible into %d groups", c, groups))
	}

	x := t.Reshape(ctx, w*h*(c/groups), groups, n)

	mean := x.Mean(ctx)
	variance := x.Variance(ctx)
	denom := variance.Add(ctx, ctx.FromFloats([]float32{eps}, 1)).Sqrt(ctx)

	x = x.Sub(ctx, mean).Div(ctx, denom)
	x = x.Reshape(ctx, w, h, c, n)

	if m.Weight != nil {
		x = x.Mul(ctx, m.Weight.Reshape(ctx, 1, 1, c))
	}

	if m.Bias != nil {
		x = x.Add(ctx, m.Bias.Reshape(ctx, 1, 1, c))
	}

	return x
}
