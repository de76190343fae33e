// tensor.go - Tensor-Struktur und Basis-Methoden
// Enthaelt: Tensor struct, Dim, Stride, Shape, Bytes, Floats

package cpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/hybridvit/hybridvit/ml"
)

const maxDims = 4

// Tensor repraesentiert einen strided float32-Tensor.
// dims und strides sind immer auf maxDims aufgefuellt, ungenutzte
// Dimensionen haben die Groesse 1. Strides sind in Elementen.
type Tensor struct {
	b *Backend

	dims    [maxDims]int
	strides [maxDims]int
	offset  int
	data    []float32
}

// newTensor erstellt einen zusammenhaengenden Tensor mit Null-Daten
func newTensor(b *Backend, dtype ml.DType, shape []int) (*Tensor, error) {
	if dtype != ml.DTypeF32 {
		return nil, fmt.Errorf("unsupported dtype %d", dtype)
	}
	if len(shape) > maxDims {
		return nil, fmt.Errorf("unsupported number of dimensions %d", len(shape))
	}

	t := Tensor{b: b, dims: [maxDims]int{1, 1, 1, 1}}
	n := 1
	for i, dim := range shape {
		if dim < 1 {
			return nil, fmt.Errorf("invalid shape %v", shape)
		}
		t.dims[i] = dim
		n *= dim
	}

	stride := 1
	for i := range maxDims {
		t.strides[i] = stride
		stride *= t.dims[i]
	}

	t.data = make([]float32, n)
	return &t, nil
}

// LogValue gibt den Tensor als slog-Wert zurueck
func (t *Tensor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("shape", t.Shape()),
		slog.Int("elements", t.elements()),
	)
}

// Dim gibt die Groesse einer Dimension zurueck
func (t *Tensor) Dim(n int) int {
	return t.dims[n]
}

// Stride gibt den Stride einer Dimension in Bytes zurueck
func (t *Tensor) Stride(n int) int {
	return t.strides[n] * 4
}

// Shape gibt die Form des Tensors zurueck.
// Nachgestellte 1-Dimensionen werden weggelassen.
func (t *Tensor) Shape() []int {
	n := 1
	for i := maxDims - 1; i >= 1; i-- {
		if t.dims[i] > 1 {
			n = i + 1
			break
		}
	}

	shape := make([]int, n)
	for i := range shape {
		shape[i] = t.dims[i]
	}

	return shape
}

// DType gibt den Datentyp der Elemente zurueck
func (t *Tensor) DType() ml.DType {
	return ml.DTypeF32
}

// elements gibt die Anzahl der logischen Elemente zurueck
func (t *Tensor) elements() int {
	n := 1
	for i := range maxDims {
		n *= t.dims[i]
	}
	return n
}

// isContiguous prueft ob die Daten in Standard-Layout vorliegen
func (t *Tensor) isContiguous() bool {
	stride := 1
	for i := range maxDims {
		if t.dims[i] != 1 && t.strides[i] != stride {
			return false
		}
		stride *= t.dims[i]
	}
	return true
}

// index berechnet den Daten-Index fuer logische Koordinaten
func (t *Tensor) index(i0, i1, i2, i3 int) int {
	return t.offset + i0*t.strides[0] + i1*t.strides[1] + i2*t.strides[2] + i3*t.strides[3]
}

// at liest ein Element an logischen Koordinaten
func (t *Tensor) at(i0, i1, i2, i3 int) float32 {
	return t.data[t.index(i0, i1, i2, i3)]
}

// set schreibt ein Element an logischen Koordinaten
func (t *Tensor) set(i0, i1, i2, i3 int, v float32) {
	t.data[t.index(i0, i1, i2, i3)] = v
}

// Bytes gibt die Tensor-Daten als Little-Endian Bytes zurueck
func (t *Tensor) Bytes() []byte {
	f32s := t.Floats()
	data := make([]byte, len(f32s)*4)
	for i, f := range f32s {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}

	return data
}

// Floats gibt die Tensor-Daten in logischer Reihenfolge zurueck
func (t *Tensor) Floats() []float32 {
	data := make([]float32, t.elements())

	if t.isContiguous() {
		copy(data, t.data[t.offset:t.offset+len(data)])
		return data
	}

	var n int
	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				for i0 := range t.dims[0] {
					data[n] = t.at(i0, i1, i2, i3)
					n++
				}
			}
		}
	}

	return data
}

// empty erstellt einen neuen Tensor mit denselben Backend-Referenzen
func (t *Tensor) empty(shape ...int) *Tensor {
	tt, err := newTensor(t.b, ml.DTypeF32, shape)
	if err != nil {
		panic(err)
	}
	return tt
}
