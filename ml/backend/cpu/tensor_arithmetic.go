// tensor_arithmetic.go - Elementweise Tensor-Operationen
// Enthaelt: Add, Sub, Mul, Div, Scale, Repeat, Concat

package cpu

import (
	"fmt"

	"github.com/hybridvit/hybridvit/ml"
)

// elementwise wendet op elementweise an. t2 wird auf die Form von t
// gebroadcastet, jede Dimension von t2 muss die von t teilen.
func (t *Tensor) elementwise(t2 ml.Tensor, op func(a, b float32) float32) ml.Tensor {
	u := t2.(*Tensor)
	for i := range maxDims {
		if t.dims[i]%u.dims[i] != 0 {
			panic(fmt.Errorf("incompatible shapes %v and %v", t.Shape(), u.Shape()))
		}
	}

	out := t.empty(t.dims[:]...)

	var n int
	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				for i0 := range t.dims[0] {
					out.data[n] = op(t.at(i0, i1, i2, i3), u.at(i0%u.dims[0], i1%u.dims[1], i2%u.dims[2], i3%u.dims[3]))
					n++
				}
			}
		}
	}

	return out
}

// Add addiert t2 elementweise
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(t2, func(a, b float32) float32 { return a + b })
}

// Sub subtrahiert t2 elementweise
func (t *Tensor) Sub(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(t2, func(a, b float32) float32 { return a - b })
}

// Mul multipliziert t2 elementweise
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(t2, func(a, b float32) float32 { return a * b })
}

// Div dividiert elementweise durch t2
func (t *Tensor) Div(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(t2, func(a, b float32) float32 { return a / b })
}

// Scale multipliziert alle Elemente mit s
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	out := t.empty(t.dims[:]...)

	var n int
	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				for i0 := range t.dims[0] {
					out.data[n] = t.at(i0, i1, i2, i3) * float32(s)
					n++
				}
			}
		}
	}

	return out
}

// Repeat kachelt den Tensor n-mal entlang dim
func (t *Tensor) Repeat(ctx ml.Context, dim, n int) ml.Tensor {
	if dim < 0 || dim >= maxDims {
		panic(fmt.Errorf("invalid dimension %d", dim))
	}
	if n < 1 {
		panic(fmt.Errorf("invalid repeat count %d", n))
	}

	shape := t.dims
	shape[dim] *= n
	out := t.empty(shape[:]...)

	var i int
	for i3 := range out.dims[3] {
		for i2 := range out.dims[2] {
			for i1 := range out.dims[1] {
				for i0 := range out.dims[0] {
					out.data[i] = t.at(i0%t.dims[0], i1%t.dims[1], i2%t.dims[2], i3%t.dims[3])
					i++
				}
			}
		}
	}

	return out
}

// Concat haengt t2 entlang dim an t an. Alle anderen Dimensionen
// muessen uebereinstimmen.
func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, dim int) ml.Tensor {
	u := t2.(*Tensor)
	if dim < 0 || dim >= maxDims {
		panic(fmt.Errorf("invalid dimension %d", dim))
	}
	for i := range maxDims {
		if i != dim && t.dims[i] != u.dims[i] {
			panic(fmt.Errorf("incompatible shapes %v and %v", t.Shape(), u.Shape()))
		}
	}

	shape := t.dims
	shape[dim] += u.dims[dim]
	out := t.empty(shape[:]...)

	var n int
	idx := [maxDims]int{}
	for i3 := range out.dims[3] {
		for i2 := range out.dims[2] {
			for i1 := range out.dims[1] {
				for i0 := range out.dims[0] {
					idx[0], idx[1], idx[2], idx[3] = i0, i1, i2, i3
					if idx[dim] < t.dims[dim] {
						out.data[n] = t.at(idx[0], idx[1], idx[2], idx[3])
					} else {
						idx[dim] -= t.dims[dim]
						out.data[n] = u.at(idx[0], idx[1], idx[2], idx[3])
					}
					n++
				}
			}
		}
	}

	return out
}
