package hybridvit

import (
	"errors"

	"github.com/hybridvit/hybridvit/ml"
	"github.com/hybridvit/hybridvit/ml/nn"
)

// ============================================================================
// MBConv - Invertierte Residual-Bloecke auf der Token-Sequenz
// ============================================================================
//
// Dieses Modul enthaelt:
// - ConvBlock: Faltung -> BatchNorm -> SiLU
// - DepthwiseBlock: kanalweise Faltung -> BatchNorm -> SiLU
// - SqueezeExcite: kanalweises Gating ueber zwei 1x1-Faltungen
// - MBConv: Expand -> Depthwise -> SE -> Projektion -> BatchNorm
//
// Die Token-Sequenz (hidden, seq, batch) wird fuer die Faltungen als
// (seq x 1)-Gitter mit hidden Kanaelen pro Batch ausgelegt.

// sequenceToGrid legt die Token-Sequenz als Faltungsgitter (seq, 1, hidden, batch) aus
func sequenceToGrid(ctx ml.Context, t ml.Tensor) ml.Tensor {
	return t.Permute(ctx, 2, 0, 3, 1)
}

// gridToSequence legt das Faltungsgitter zurueck als Token-Sequenz (hidden, seq, batch)
func gridToSequence(ctx ml.Context, t ml.Tensor) ml.Tensor {
	return t.Permute(ctx, 1, 3, 0, 2)
}

// makeDivisible rundet v auf das naechste Vielfache von divisor, mindestens
// min (Standard: divisor). Faellt der gerundete Wert mehr als 10% unter v,
// wird ein divisor aufgeschlagen.
func makeDivisible(v float32, divisor int, minValue ...int) int {
	floor := divisor
	if len(minValue) > 0 {
		floor = minValue[0]
	}

	n := max(floor, int(v+float32(divisor)/2)/divisor*divisor)
	if float32(n) < 0.9*v {
		n += divisor
	}
	return n
}

// ConvBlock fuehrt Faltung, BatchNorm und SiLU aus
type ConvBlock struct {
	Conv *nn.Conv2D      `gguf:"conv"`
	Norm *nn.BatchNorm2D `gguf:"bn"`
}

// Forward fuehrt den ConvBlock durch
func (b *ConvBlock) Forward(ctx ml.Context, t ml.Tensor, fwd *forwardPass, stride, pad int) ml.Tensor {
	t = b.Conv.Forward(ctx, t, stride, stride, pad, pad, 1, 1)
	t = fwd.batchNorm(ctx, b.Norm, t)
	return t.SILU(ctx)
}

// DepthwiseBlock fuehrt eine kanalweise Faltung mit BatchNorm und SiLU aus
type DepthwiseBlock struct {
	Conv *nn.Conv2DDepthwise `gguf:"conv"`
	Norm *nn.BatchNorm2D     `gguf:"bn"`
}

// Forward fuehrt den DepthwiseBlock durch
func (b *DepthwiseBlock) Forward(ctx ml.Context, t ml.Tensor, fwd *forwardPass, stride, pad int) ml.Tensor {
	t = b.Conv.Forward(ctx, t, stride, stride, pad, pad, 1, 1)
	t = fwd.batchNorm(ctx, b.Norm, t)
	return t.SILU(ctx)
}

// SqueezeExcite gewichtet Kanaele ueber eine Reduce/Expand-Engstelle.
// Die Reduce-Faltung verengt auf makeDivisible(in/reduction, 4) Kanaele.
type SqueezeExcite struct {
	Reduce *nn.Conv2D `gguf:"reduce"`
	Expand *nn.Conv2D `gguf:"expand"`
}

// Forward berechnet das kanalweise Gating und wendet es auf t an
func (se *SqueezeExcite) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	y := se.Reduce.Forward(ctx, t, 1, 1, 0, 0, 1, 1).SILU(ctx)
	y = se.Expand.Forward(ctx, y, 1, 1, 0, 0, 1, 1).Sigmoid(ctx)
	return t.Mul(ctx, y)
}

// MBConv ist ein invertierter Residual-Block mit Squeeze-Excitation
type MBConv struct {
	Expand    *ConvBlock      `gguf:"expand"`
	Depthwise *DepthwiseBlock `gguf:"dw"`
	SE        *SqueezeExcite  `gguf:"se"`
	Project   *nn.Conv2D      `gguf:"project"`
	Norm      *nn.BatchNorm2D `gguf:"bn"`

	stride   int
	residual bool
}

// newMBConv legt einen MBConv-Block an. Die Identitaets-Residual-Verbindung
// wird einmalig hier entschieden.
func newMBConv(inp, oup, stride int) *MBConv {
	return &MBConv{
		stride:   stride,
		residual: stride == 1 && inp == oup,
	}
}

// Forward fuehrt den MBConv-Block auf einem Faltungsgitter durch
func (m *MBConv) Forward(ctx ml.Context, t ml.Tensor, fwd *forwardPass) ml.Tensor {
	shortcut := t

	t = m.Expand.Forward(ctx, t, fwd, 1, 0)
	t = m.Depthwise.Forward(ctx, t, fwd, m.stride, 1)
	t = m.SE.Forward(ctx, t)
	t = m.Project.Forward(ctx, t, 1, 1, 0, 0, 1, 1)
	t = fwd.batchNorm(ctx, m.Norm, t)

	if m.residual {
		t = t.Add(ctx, shortcut)
	}
	return t
}

// validate prueft ob alle Gewichte des Blocks geladen wurden
func (m *MBConv) validate() error {
	if m.Expand == nil || m.Expand.Conv == nil || m.Expand.Norm == nil {
		return errors.New("missing mbconv expand tensors")
	}
	if m.Depthwise == nil || m.Depthwise.Conv == nil || m.Depthwise.Norm == nil {
		return errors.New("missing mbconv depthwise tensors")
	}
	if m.SE == nil || m.SE.Reduce == nil || m.SE.Expand == nil {
		return errors.New("missing mbconv squeeze-excitation tensors")
	}
	if m.Project == nil {
		return errors.New("missing mbconv projection tensor")
	}
	if m.Norm == nil {
		return errors.New("missing mbconv norm tensors")
	}
	return nil
}
