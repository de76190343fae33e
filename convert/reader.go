// reader.go - Tensor-Reader fuer Checkpoint-Dateien
// Haupttypen: Tensor, tensorBase, Repacker
// Hauptfunktionen: parseTensors
package convert

import (
	"errors"
	"io"
	"io/fs"
	"strings"
)

// Tensor - Ein Gewichtstensor aus einem Checkpoint.
// Shape liegt in Torch-Reihenfolge vor (aeusserste Dimension zuerst).
type Tensor interface {
	Name() string
	Shape() []uint64
	Kind() uint32
	SetRepacker(Repacker)
	Clone() Tensor
	io.WriterTo
}

// Repacker - Wandelt die dekodierten float32-Daten eines Tensors vor dem
// Schreiben um, z.B. fuer Layout-Transposen oder Teil-Extraktion
type Repacker func(string, []float32, []uint64) ([]float32, error)

// tensorBase - Gemeinsame Basis aller Tensor-Implementierungen
type tensorBase struct {
	name     string
	shape    []uint64
	repacker Repacker
}

func (t tensorBase) Name() string {
	return t.name
}

func (t tensorBase) Shape() []uint64 {
	return t.shape
}

// GGUF Tensor-Typen
const (
	tensorKindF32 uint32 = iota
	tensorKindF16
)

// Kind - Zieltyp im GGUF. Eindimensionale Tensoren (Normen, Bias,
// BatchNorm-Statistiken) bleiben F32, alles andere wird F16.
func (t tensorBase) Kind() uint32 {
	if len(t.shape) == 0 {
		panic("invalid tensor shape")
	}
	if len(t.shape) == 1 {
		return tensorKindF32
	}
	return tensorKindF16
}

func (t *tensorBase) SetRepacker(fn Repacker) {
	t.repacker = fn
}

// parseTensors - Liest alle Tensor-Dateien im Dateisystem.
// Safetensors werden bevorzugt, gepickelte Torch-Checkpoints sind
// der Fallback.
func parseTensors(fsys fs.FS, replacer *strings.Replacer) ([]Tensor, error) {
	patterns := []struct {
		Pattern string
		Func    func(fs.FS, *strings.Replacer, ...string) ([]Tensor, error)
	}{
		{"model-*-of-*.safetensors", parseSafetensors},
		{"model.safetensors", parseSafetensors},
		{"pytorch_model-*-of-*.bin", parseTorch},
		{"pytorch_model.bin", parseTorch},
	}

	for _, pattern := range patterns {
		matches, err := fs.Glob(fsys, pattern.Pattern)
		if err != nil {
			return nil, err
		}

		if len(matches) > 0 {
			return pattern.Func(fsys, replacer, matches...)
		}
	}

	return nil, errors.New("unknown tensor format")
}
