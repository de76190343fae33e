// tensor_shape.go - Formaendernde Tensor-Operationen
// Enthaelt: Reshape, Permute, Contiguous, Pad, Slice

package cpu

import (
	"fmt"
	"slices"

	"github.com/hybridvit/hybridvit/ml"
)

// inferShape berechnet automatisch eine -1 Dimension
func inferShape(t *Tensor, shape []int) {
	total := t.elements()

	dim := -1
	for i := range shape {
		switch shape[i] {
		case -1:
			if dim != -1 {
				panic("only one dimension can be inferred")
			}
			dim = i
		case 0:
			panic("dimension cannot be zero")
		default:
			if total%shape[i] != 0 {
				panic("cannot infer dimension")
			}

			total /= shape[i]
		}
	}

	if dim != -1 {
		shape[dim] = total
	}
}

// view erstellt einen Tensor mit neuen Dimensionen auf denselben Daten
func (t *Tensor) view(dims, strides [maxDims]int, offset int) *Tensor {
	return &Tensor{b: t.b, dims: dims, strides: strides, offset: offset, data: t.data}
}

// Reshape aendert die Form des Tensors bei gleicher Elementanzahl.
// Eine Dimension kann als -1 angegeben und abgeleitet werden.
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	if !t.isContiguous() {
		return t.Contiguous(ctx, shape...)
	}

	if slices.Contains(shape, -1) {
		inferShape(t, shape)
	}

	if len(shape) > maxDims {
		panic("unsupported number of dimensions")
	}

	dims := [maxDims]int{1, 1, 1, 1}
	n := 1
	for i, dim := range shape {
		dims[i] = dim
		n *= dim
	}

	if n != t.elements() {
		panic(fmt.Errorf("invalid shape %v for %d elements", shape, t.elements()))
	}

	var strides [maxDims]int
	stride := 1
	for i := range maxDims {
		strides[i] = stride
		stride *= dims[i]
	}

	return t.view(dims, strides, t.offset)
}

// Permute permutiert die Dimensionen des Tensors
// Erwartet die neue Reihenfolge der Dimensionen
func (t *Tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	if len(order) != len(t.Shape()) && len(order) != maxDims {
		panic("invalid number of dimensions for permute")
	}

	for i := len(order); i < maxDims; i++ {
		order = append(order, i)
	}

	var dims, strides [maxDims]int
	var seen [maxDims]bool
	for i, o := range order {
		if o < 0 || o >= maxDims || seen[o] {
			panic("invalid permutation")
		}

		seen[o] = true
		dims[o] = t.dims[i]
		strides[o] = t.strides[i]
	}

	return t.view(dims, strides, t.offset)
}

// Contiguous erstellt eine zusammenhaengende Kopie des Tensors
// Optional kann eine neue Shape angegeben werden
func (t *Tensor) Contiguous(ctx ml.Context, shape ...int) ml.Tensor {
	if slices.Contains(shape, -1) {
		inferShape(t, shape)
	}

	if len(shape) == 0 {
		shape = t.dims[:]
	}

	out := t.empty(shape...)
	if len(out.data) != t.elements() {
		panic(fmt.Errorf("invalid shape %v for %d elements", shape, t.elements()))
	}

	copy(out.data, t.Floats())
	return out
}

// Pad haengt Nullen an das Ende jeder Dimension an
// Erwartet genau 4 Padding-Werte
func (t *Tensor) Pad(ctx ml.Context, shape ...int) ml.Tensor {
	if len(shape) != maxDims {
		panic("expected 4 dimensions")
	}

	dims := t.dims
	for i, pad := range shape {
		if pad < 0 {
			panic("invalid padding")
		}
		dims[i] += pad
	}

	out := t.empty(dims[:]...)
	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				for i0 := range t.dims[0] {
					out.set(i0, i1, i2, i3, t.at(i0, i1, i2, i3))
				}
			}
		}
	}

	return out
}

// Slice gibt eine Ansicht des Tensors entlang einer Dimension zurueck
func (t *Tensor) Slice(ctx ml.Context, dim int, low, high, step int) ml.Tensor {
	if dim < 0 || dim >= maxDims {
		panic("invalid dimension")
	} else if low < 0 || high > t.dims[dim] || low >= high || step < 1 {
		panic("invalid slice parameters")
	}

	dims := t.dims
	strides := t.strides
	dims[dim] = (high - low + step - 1) / step
	strides[dim] *= step

	return t.view(dims, strides, t.offset+low*t.strides[dim])
}
