// tensor_util.go - Reduktionen und Hilfsoperationen
// Enthaelt: Mean, Variance, Sqrt, Copy

package cpu

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/hybridvit/hybridvit/ml"
)

// Mean berechnet den Mittelwert ueber die innerste Dimension
func (t *Tensor) Mean(ctx ml.Context) ml.Tensor {
	out := t.empty(1, t.dims[1], t.dims[2], t.dims[3])
	d := float32(t.dims[0])

	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				var sum float32
				for i0 := range t.dims[0] {
					sum += t.at(i0, i1, i2, i3)
				}
				out.set(0, i1, i2, i3, sum/d)
			}
		}
	}

	return out
}

// Variance berechnet die Varianz ueber die innerste Dimension
func (t *Tensor) Variance(ctx ml.Context) ml.Tensor {
	out := t.empty(1, t.dims[1], t.dims[2], t.dims[3])
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
				out.set(0, i1, i2, i3, vsum/d)
			}
		}
	}

	return out
}

// Sqrt berechnet die Wurzel elementweise
func (t *Tensor) Sqrt(ctx ml.Context) ml.Tensor {
	return t.unary(math32.Sqrt)
}

// Copy kopiert Daten in einen anderen Tensor. Beide Tensoren
// muessen dieselbe Elementanzahl haben.
func (t *Tensor) Copy(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	u := t2.(*Tensor)
	if u.elements() != t.elements() {
		panic(fmt.Errorf("incompatible shapes %v and %v", t.Shape(), u.Shape()))
	}

	data := t.Floats()
	var n int
	for i3 := range u.dims[3] {
		for i2 := range u.dims[2] {
			for i1 := range u.dims[1] {
				for i0 := range u.dims[0] {
					u.set(i0, i1, i2, i3, data[n])
					n++
				}
			}
		}
	}

	return u
}
