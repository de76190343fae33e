// filetype.go - GGUF FileType Definitionen
// Enthält: FileType Konstanten, Parsing und Konvertierung zu TensorType

package ggml

import (
	"fmt"
	"log/slog"
	"strings"
)

// FileType ist der Go-Äquivalent zu llama_ftype für GGUF-Dateitypen.
// Die numerischen Werte folgen llama_ftype, daher die Lücke vor BF16.
type FileType uint32

const (
	FileTypeF32  FileType = 0
	FileTypeF16  FileType = 1
	FileTypeBF16 FileType = 32

	FileTypeUnknown FileType = 1024
)

// ParseFileType parst den GGUF-Dateityp aus einem String.
// Vision-Checkpoints werden unquantisiert ausgeliefert, daher sind nur
// die Float-Typen gültig.
func ParseFileType(s string) (FileType, error) {
	switch s {
	case "F32":
		return FileTypeF32, nil
	case "F16":
		return FileTypeF16, nil
	case "BF16":
		return FileTypeBF16, nil
	default:
		supportedFileTypes := []FileType{
			FileTypeF32,
			FileTypeF16,
			FileTypeBF16,
		}
		strs := make([]string, len(supportedFileTypes))
		for i := range supportedFileTypes {
			strs[i] = supportedFileTypes[i].String()
		}

		return FileTypeUnknown, fmt.Errorf("unsupported file type %s - supported types are %s", s, strings.Join(strs, ", "))
	}
}

// String gibt die String-Repräsentation des FileType zurück
func (t FileType) String() string {
	switch t {
	case FileTypeF32:
		return "F32"
	case FileTypeF16:
		return "F16"
	case FileTypeBF16:
		return "BF16"
	default:
		return "unknown"
	}
}

// Value gibt den uint32-Wert des FileType zurück
func (t FileType) Value() uint32 {
	return uint32(t)
}

// ToTensorType konvertiert FileType zu TensorType
func (ftype FileType) ToTensorType() TensorType {
	switch ftype {
	case FileTypeF32:
		return TensorTypeF32
	case FileTypeF16:
		return TensorTypeF16
	case FileTypeBF16:
		return TensorTypeBF16
	default:
		slog.Warn("unsupported file type", "type", ftype)
		return 0 // F32
	}
}
