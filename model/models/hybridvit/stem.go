package hybridvit

import (
	"errors"

	"github.com/hybridvit/hybridvit/ml"
	"github.com/hybridvit/hybridvit/ml/nn"
)

// ============================================================================
// ResNet-Stem - Faltungsvorstufe vor dem Patch-Embedding
// ============================================================================
//
// Dieses Modul enthaelt:
// - Stem: Root-Faltung, GroupNorm, MaxPool und ResNet-Stufen
// - StemStage: Folge von Bottleneck-Einheiten einer Breite
// - StemUnit: Bottleneck-Einheit mit optionaler Projektions-Abkuerzung
//
// Alle Faltungen sind gewichtsstandardisiert: der Kernel wird je
// Ausgabekanal ueber (kw, kh, cin) auf Mittelwert 0 und Varianz 1
// normiert, berechnet im Graphen beim Forward-Durchlauf.

const (
	// stemRootWidth ist die Kanalbreite der Root-Faltung vor dem Width-Factor
	stemRootWidth = 64

	// stdConvEps stabilisiert die Division bei der Gewichtsstandardisierung
	stdConvEps = 1e-5
)

// standardizeKernel normiert einen Faltungskernel je Ausgabekanal
func standardizeKernel(ctx ml.Context, w ml.Tensor) ml.Tensor {
	kw, kh, cin, cout := w.Dim(0), w.Dim(1), w.Dim(2), w.Dim(3)

	flat := w.Reshape(ctx, kw*kh*cin, cout)
	eps := ctx.FromFloats([]float32{stdConvEps}, 1)
	std := flat.Variance(ctx).Add(ctx, eps).Sqrt(ctx)
	flat = flat.Sub(ctx, flat.Mean(ctx)).Div(ctx, std)

	return flat.Reshape(ctx, kw, kh, cin, cout)
}

// stdConv faltet t mit dem standardisierten Kernel von conv
func stdConv(ctx ml.Context, conv *nn.Conv2D, t ml.Tensor, stride, pad int) ml.Tensor {
	return standardizeKernel(ctx, conv.Weight).Conv2D(ctx, t, stride, stride, pad, pad, 1, 1)
}

// samePad berechnet die TF-SAME-Polsterung einer Dimension
func samePad(n, kernel, stride int) (begin, end int) {
	out := (n + stride - 1) / stride
	total := max((out-1)*stride+kernel-n, 0)
	return total / 2, total - total/2
}

// padSame polstert beide Raumdimensionen fuer eine SAME-Faltung mit Nullen
func padSame(ctx ml.Context, t ml.Tensor, kernel, stride int) ml.Tensor {
	b0, e0 := samePad(t.Dim(0), kernel, stride)
	b1, e1 := samePad(t.Dim(1), kernel, stride)

	if b0 > 0 {
		zeros := ctx.Zeros(ml.DTypeF32, b0, t.Dim(1), t.Dim(2), t.Dim(3))
		t = zeros.Concat(ctx, t, 0)
	}
	if b1 > 0 {
		zeros := ctx.Zeros(ml.DTypeF32, t.Dim(0), b1, t.Dim(2), t.Dim(3))
		t = zeros.Concat(ctx, t, 1)
	}
	if e0 > 0 || e1 > 0 {
		t = t.Pad(ctx, e0, e1, 0, 0)
	}
	return t
}

// Stem ist die ResNet-Vorstufe vor dem Patch-Embedding
type Stem struct {
	Conv   *nn.Conv2D    `gguf:"conv_root"`
	Norm   *nn.GroupNorm `gguf:"gn_root"`
	Stages []StemStage   `gguf:"stage"`
}

// newStem legt die Stufen-Struktur fuer die konfigurierten Layer-Zahlen an.
// Die erste Stufe laeuft mit Stride 1, jede weitere halbiert die Aufloesung
// in der ersten Einheit.
func newStem(layers []int32) *Stem {
	s := &Stem{Stages: make([]StemStage, len(layers))}
	for i, count := range layers {
		units := make([]StemUnit, count)
		for j := range units {
			stride := 1
			if i > 0 && j == 0 {
				stride = 2
			}
			units[j] = StemUnit{stride: stride}
		}
		s.Stages[i].Units = units
	}
	return s
}

// Forward fuehrt den Stem durch: Root-Faltung, GroupNorm, ReLU, MaxPool
// und anschliessend alle ResNet-Stufen
func (s *Stem) Forward(ctx ml.Context, t ml.Tensor, fwd *forwardPass) ml.Tensor {
	t = padSame(ctx, t, 7, 2)
	t = stdConv(ctx, s.Conv, t, 2, 0)
	t = s.Norm.Forward(ctx, t, fwd.gnGroups, fwd.gnEps)
	t = t.RELU(ctx)

	// MaxPool mit Null-Polsterung, nach ReLU aequivalent zur SAME-Polsterung
	t = padSame(ctx, t, 3, 2)
	t = t.MaxPool2D(ctx, 3, 2, 0)

	for i := range s.Stages {
		t = s.Stages[i].Forward(ctx, t, fwd)
	}
	return t
}

// validate prueft ob alle Gewichte des Stems geladen wurden
func (s *Stem) validate() error {
	if s.Conv == nil || s.Norm == nil {
		return errors.New("missing stem root tensors conv_root/gn_root")
	}
	for i := range s.Stages {
		for j := range s.Stages[i].Units {
			if err := s.Stages[i].Units[j].validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// StemStage ist eine Folge von Bottleneck-Einheiten gleicher Breite
type StemStage struct {
	Units []StemUnit `gguf:"unit"`
}

// Forward fuehrt alle Einheiten der Stufe durch
func (s *StemStage) Forward(ctx ml.Context, t ml.Tensor, fwd *forwardPass) ml.Tensor {
	for i := range s.Units {
		t = s.Units[i].Forward(ctx, t, fwd)
	}
	return t
}

// StemUnit ist eine Bottleneck-Einheit: 1x1 -> 3x3 (Stride) -> 1x1 mit
// GroupNorm und ReLU, plus Projektions-Abkuerzung bei Formwechsel
type StemUnit struct {
	Conv1 *nn.Conv2D    `gguf:"conv1"`
	Norm1 *nn.GroupNorm `gguf:"gn1"`
	Conv2 *nn.Conv2D    `gguf:"conv2"`
	Norm2 *nn.GroupNorm `gguf:"gn2"`
	Conv3 *nn.Conv2D    `gguf:"conv3"`
	Norm3 *nn.GroupNorm `gguf:"gn3"`

	ConvProj *nn.Conv2D    `gguf:"conv_proj"`
	NormProj *nn.GroupNorm `gguf:"gn_proj"`

	stride int
}

// Forward fuehrt die Bottleneck-Einheit durch
func (u *StemUnit) Forward(ctx ml.Context, t ml.Tensor, fwd *forwardPass) ml.Tensor {
	residual := t
	if u.ConvProj != nil {
		residual = stdConv(ctx, u.ConvProj, t, u.stride, 0)
		residual = u.NormProj.Forward(ctx, residual, fwd.gnGroups, fwd.gnEps)
	}

	y := stdConv(ctx, u.Conv1, t, 1, 0)
	y = u.Norm1.Forward(ctx, y, fwd.gnGroups, fwd.gnEps).RELU(ctx)

	y = padSame(ctx, y, 3, u.stride)
	y = stdConv(ctx, u.Conv2, y, u.stride, 0)
	y = u.Norm2.Forward(ctx, y, fwd.gnGroups, fwd.gnEps).RELU(ctx)

	y = stdConv(ctx, u.Conv3, y, 1, 0)
	y = u.Norm3.Forward(ctx, y, fwd.gnGroups, fwd.gnEps)

	return residual.Add(ctx, y).RELU(ctx)
}

// validate prueft ob alle Gewichte der Einheit geladen wurden
func (u *StemUnit) validate() error {
	if u.Conv1 == nil || u.Norm1 == nil || u.Conv2 == nil || u.Norm2 == nil ||
		u.Conv3 == nil || u.Norm3 == nil {
		return errors.New("missing stem unit tensors conv{1,2,3}/gn{1,2,3}")
	}
	if (u.ConvProj == nil) != (u.NormProj == nil) {
		return errors.New("stem unit projection requires both conv_proj and gn_proj")
	}
	return nil
}
