// convert_model.go - Model-Konvertierung: Laedt und konvertiert Checkpoints zu GGUF
// Hauptfunktionen: LoadModelMetadata, ConvertModel, writeFile
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/hybridvit/hybridvit/fs/ggml"
)

// LoadModelMetadata - Laedt die Model-Metadaten aus dem Dateisystem
func LoadModelMetadata(fsys fs.FS) (ModelKV, error) {
	bts, err := fs.ReadFile(fsys, "config.json")
	if err != nil {
		return nil, err
	}

	var p ModelParameters
	if err := json.Unmarshal(bts, &p); err != nil {
		return nil, err
	}

	if len(p.Architectures) < 1 {
		return nil, errors.New("unknown architecture")
	}

	conv := createModelConverter(p.Architectures[0])
	if conv == nil {
		return nil, fmt.Errorf("unsupported architecture %q", p.Architectures[0])
	}

	if err := json.Unmarshal(bts, conv); err != nil {
		return nil, err
	}

	if t, ok := conv.(moreParser); ok {
		if err := t.parseMore(fsys); err != nil {
			return nil, err
		}
	}

	return conv, nil
}

// createModelConverter - Factory fuer Model-Converter basierend auf Architektur
func createModelConverter(arch string) ModelConverter {
	switch arch {
	case "ViTHybridForImageClassification", "ViTHybridModel":
		return &vitHybridModel{}
	default:
		return nil
	}
}

// ConvertModel - Konvertiert ein Checkpoint-Verzeichnis zu GGUF
// Unterstuetzte Eingabeformate: safetensors (bevorzugt), gepickelte
// PyTorch-Checkpoints
func ConvertModel(fsys fs.FS, f *os.File) error {
	kv, err := LoadModelMetadata(fsys)
	if err != nil {
		return err
	}
	conv := kv.(ModelConverter)

	ts, err := parseTensors(fsys, strings.NewReplacer(conv.Replacements()...))
	if err != nil {
		return err
	}

	return writeFile(f, conv.KV(), conv.Tensors(ts))
}

// writeFile - Schreibt GGUF-Datei mit KV-Metadaten und Tensoren.
// Die Shapes kommen in Torch-Reihenfolge an und werden fuer GGML
// umgedreht, sodass die innerste Dimension zuerst steht.
func writeFile(f *os.File, kv KV, ts []*ggml.Tensor) error {
	for i := range ts {
		ts[i].Shape = slices.Clone(ts[i].Shape)
		slices.Reverse(ts[i].Shape)
	}
	return ggml.WriteGGUF(f, kv, ts)
}
