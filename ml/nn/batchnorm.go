package nn

import "github.com/hybridvit/hybridvit/ml"

// BatchNorm2D normalizes each channel of (width, height, channels,
// batch) inputs. Forward uses the stored running statistics,
// ForwardTrain uses the statistics of the current batch and folds
// them into the running statistics.
type BatchNorm2D struct {
	Weight      ml.Tensor `gguf:"weight"`
	Bias        ml.Tensor `gguf:"bias"`
	RunningMean ml.Tensor `gguf:"running_mean"`
	RunningVar  ml.Tensor `gguf:"running_var"`
}

func (m *BatchNorm2D) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	c := t.Dim(2)

	mean := m.RunningMean.Reshape(ctx, 1, 1, c)
	variance := m.RunningVar.Reshape(ctx, 1, 1, c)

	return m.normalize(ctx, t, mean, variance, eps)
}

// ForwardTrain normalizes with the batch statistics and updates the
// running statistics in place: running = momentum*running +
// (1-momentum)*batch.
func (m *BatchNorm2D) ForwardTrain(ctx ml.Context, t ml.Tensor, eps, momentum float32) ml.Tensor {
	w, h, c, n := t.Dim(0), t.Dim(1), t.Dim(2), t.Dim(3)

	// (W, H, C, N) -> (W, H, N, C) so each channel is one column
	x := t.Permute(ctx, 0, 1, 3, 2).Contiguous(ctx, w*h*n, c)

	mean := x.Mean(ctx)
	variance := x.Variance(ctx)

	m.RunningMean.Scale(ctx, float64(momentum)).
		Add(ctx, mean.Reshape(ctx, c).Scale(ctx, 1-float64(momentum))).
		Copy(ctx, m.RunningMean)
	m.RunningVar.Scale(ctx, float64(momentum)).
		Add(ctx, variance.Reshape(ctx, c).Scale(ctx, 1-float64(momentum))).
		Copy(ctx, m.RunningVar)

	return m.normalize(ctx, t, mean.Reshape(ctx, 1, 1, c), variance.Reshape(ctx, 1, 1, c), eps)
}

func (m *BatchNorm2D) normalize(ctx ml.Context, t, mean, variance ml.Tensor, eps float32) ml.Tensor {
	denom := variance.Add(ctx, ctx.FromFloats([]float32{eps}, 1)).Sqrt(ctx)
	t = t.Sub(ctx, mean).Div(ctx, denom)

	c := t.Dim(2)
	if m.Weight != nil {
		t = t.Mul(ctx, m.Weight.Reshape(ctx, 1, 1, c))
	}

	if m.Bias != nil {
		t = t.Add(ctx, m.Bias.Reshape(ctx, 1, 1, c))
	}

	return t
}
