// tensor_matrix.go - Matrixoperationen und Normalisierung
// Enthaelt: Mulmat, MulmatFullPrec, LayerNorm

package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/hybridvit/hybridvit/ml"
)

// Mulmat berechnet das Matrixprodukt ueber die innerste Dimension.
// Fuer t mit Form (k, p) und t2 mit Form (k, n) hat das Ergebnis die
// Form (p, n). Die Batch-Dimensionen von t werden auf die von t2
// gebroadcastet.
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	u := t2.(*Tensor)
	if t.dims[0] != u.dims[0] || u.dims[2]%t.dims[2] != 0 || u.dims[3]%t.dims[3] != 0 {
		panic(fmt.Errorf("incompatible shapes %v and %v", t.Shape(), u.Shape()))
	}

	a := t
	if !a.isContiguous() {
		a = a.Contiguous(ctx).(*Tensor)
	}

	b := u
	if !b.isContiguous() {
		b = b.Contiguous(ctx).(*Tensor)
	}

	k, p, n := a.dims[0], a.dims[1], b.dims[1]
	out := t.empty(p, n, b.dims[2], b.dims[3])

	for i3 := range b.dims[3] {
		for i2 := range b.dims[2] {
			aoff := a.offset + (i3%a.dims[3])*a.strides[3] + (i2%a.dims[2])*a.strides[2]
			boff := b.offset + i3*b.strides[3] + i2*b.strides[2]
			coff := i3*out.strides[3] + i2*out.strides[2]

			blas32.Gemm(blas.NoTrans, blas.Trans, 1,
				blas32.General{Rows: n, Cols: k, Stride: k, Data: b.data[boff : boff+n*k]},
				blas32.General{Rows: p, Cols: k, Stride: k, Data: a.data[aoff : aoff+p*k]},
				0,
				blas32.General{Rows: n, Cols: p, Stride: p, Data: out.data[coff : coff+n*p]})
		}
	}

	return out
}

// MulmatFullPrec berechnet das Matrixprodukt ohne reduzierte
// Genauigkeit. Das CPU-Backend rechnet immer in float32.
func (t *Tensor) MulmatFullPrec(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.Mulmat(ctx, t2)
}

// LayerNorm normalisiert die innerste Dimension auf Mittelwert 0 und
// Varianz 1. Gewicht und Bias sind optional.
func (t *Tensor) LayerNorm(ctx ml.Context, w, b ml.Tensor, eps float32) ml.Tensor {
	out := t.empty(t.dims[:]...)
	d := float32(t.dims[0])

	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				var sum float32
				for i0 := range t.dims[0] {
					sum += t.at(i0, i1, i2, i3)
				}

				mean := sum / d
				var vsum float32
				for i0 := range t.dims[0] {
					dv := t.at(i0, i1, i2, i3) - mean
					vsum += dv * dv
				}

				inv := 1 / math32.Sqrt(vsum/d+eps)
				for i0 := range t.dims[0] {
					out.set(i0, i1, i2, i3, (t.at(i0, i1, i2, i3)-mean)*inv)
				}
			}
		}
	}

	var tt ml.Tensor = out
	if w != nil {
		tt = tt.Mul(ctx, w)
	}

	if b != nil {
		tt = tt.Add(ctx, b)
	}

	return tt
}
