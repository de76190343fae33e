// convert_tensor.go - Tensor-Transformationen fuer die Konvertierung
// Haupttypen: split, constTensor
// Hauptfunktionen: splitDim
package convert

import (
	"encoding/binary"
	"io"
	"slices"
	"strings"

	"github.com/hybridvit/hybridvit/fs/ggml"
	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"
)

// split - Benennt einen Teil eines aufgeteilten Tensors um
type split struct {
	*strings.Replacer
}

// splitDim - Teilt einen Tensor entlang dim in gleich grosse Teile.
// Jeder Teil traegt den durch seinen split umgeschriebenen Namen.
// Gebraucht fuer fusionierte QKV-Gewichte.
func splitDim(t Tensor, dim int, splits ...split) []*ggml.Tensor {
	var out []*ggml.Tensor
	for i, s := range splits {
		shape := slices.Clone(t.Shape())
		shape[dim] /= uint64(len(splits))

		tt := t.Clone()
		tt.SetRepacker(splitRepacker(dim, i, len(splits)))

		out = append(out, &ggml.Tensor{
			Name:     s.Replace(t.Name()),
			Kind:     t.Kind(),
			Shape:    shape,
			WriterTo: tt,
		})
	}

	return out
}

// splitRepacker - Schneidet Teil i von n entlang dim aus den vollen Daten
func splitRepacker(dim, i, n int) Repacker {
	return func(_ string, data []float32, shape []uint64) ([]float32, error) {
		dims := make([]int, len(shape))
		for j := range shape {
			dims[j] = int(shape[j])
		}

		var tt tensor.Tensor = tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))

		step := dims[dim] / n
		specs := make([]tensor.Slice, len(dims))
		specs[dim] = tensor.S(i*step, (i+1)*step)

		sl, err := tt.Slice(specs...)
		if err != nil {
			return nil, err
		}

		out := tensor.Materialize(sl).(*tensor.Dense)
		if err := out.Reshape(out.Shape().TotalSize()); err != nil {
			return nil, err
		}

		return native.VectorF32(out)
	}
}

// constTensor - io.WriterTo fuer synthetische Tensoren, deren Elemente
// alle denselben Wert tragen. Wird immer als F32 geschrieben.
type constTensor struct {
	value float32
	n     int
}

func (c constTensor) WriteTo(w io.Writer) (int64, error) {
	data := make([]float32, c.n)
	if c.value != 0 {
		for i := range data {
			data[i] = c.value
		}
	}
	return 0, binary.Write(w, binary.LittleEndian, data)
}
