// reader_torch.go - Reader fuer gepickelte PyTorch-Checkpoints
// Haupttypen: torchTensor
// Hauptfunktionen: parseTorch
package convert

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/x448/float16"
)

// parseTorch - Liest Tensoren aus gepickelten PyTorch-Checkpoints
func parseTorch(fsys fs.FS, replacer *strings.Replacer, ps ...string) ([]Tensor, error) {
	var ts []Tensor
	for _, p := range ps {
		pt, err := loadTorchFile(fsys, p)
		if err != nil {
			return nil, err
		}

		add := func(k, v any) error {
			t, ok := v.(*pytorch.Tensor)
			if !ok {
				return nil
			}

			name, ok := k.(string)
			if !ok {
				return fmt.Errorf("unexpected key type %T in %s", k, p)
			}

			shape := make([]uint64, len(t.Size))
			for i, d := range t.Size {
				shape[i] = uint64(d)
			}

			ts = append(ts, torchTensor{
				storage: t.Source,
				tensorBase: &tensorBase{
					name:  replacer.Replace(name),
					shape: shape,
				},
			})
			return nil
		}

		switch sd := pt.(type) {
		case *types.OrderedDict:
			for _, entry := range sd.Map {
				if err := add(entry.Key, entry.Value); err != nil {
					return nil, err
				}
			}
		case *types.Dict:
			for _, entry := range *sd {
				if err := add(entry.Key, entry.Value); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("unexpected checkpoint layout %T in %s", pt, p)
		}
	}

	return ts, nil
}

// loadTorchFile - Entpickelt eine Checkpoint-Datei. gopickle braucht einen
// echten Dateipfad, deshalb wird der Inhalt zuerst in eine temporaere
// Datei kopiert.
func loadTorchFile(fsys fs.FS, p string) (any, error) {
	src, err := fsys.Open(p)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "hybridvit-torch-")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	return pytorch.Load(tmp.Name())
}

// torchTensor - Ein Tensor aus einem gepickelten Torch-Checkpoint
type torchTensor struct {
	storage pytorch.StorageInterface
	*tensorBase
}

func (t torchTensor) Clone() Tensor {
	return torchTensor{
		storage: t.storage,
		tensorBase: &tensorBase{
			name:     t.name,
			shape:    slices.Clone(t.shape),
			repacker: t.repacker,
		},
	}
}

// WriteTo - Liest den Storage nach float32, wendet den Repacker an
// und schreibt die Daten im Zieltyp
func (t torchTensor) WriteTo(w io.Writer) (int64, error) {
	var f32s []float32
	switch s := t.storage.(type) {
	case *pytorch.FloatStorage:
		f32s = s.Data
	case *pytorch.HalfStorage:
		f32s = s.Data
	case *pytorch.BFloat16Storage:
		f32s = s.Data
	case *pytorch.DoubleStorage:
		f32s = make([]float32, len(s.Data))
		for i, f64 := range s.Data {
			f32s[i] = float32(f64)
		}
	default:
		return 0, fmt.Errorf("unknown data type: %T", s)
	}

	if t.repacker != nil {
		var err error
		f32s, err = t.repacker(t.Name(), f32s, t.Shape())
		if err != nil {
			return 0, err
		}
	}

	switch t.Kind() {
	case tensorKindF32:
		return 0, binary.Write(w, binary.LittleEndian, f32s)
	case tensorKindF16:
		f16s := make([]uint16, 0, len(f32s))
		for _, f32 := range f32s {
			f16s = append(f16s, float16.Fromfloat32(f32).Bits())
		}

		return 0, binary.Write(w, binary.LittleEndian, f16s)
	default:
		return 0, fmt.Errorf("unknown storage type: %d", t.Kind())
	}
}
