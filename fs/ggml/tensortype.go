// tensortype.go - Tensor-Datentypen
// Enthaelt: TensorType Konstanten, Parsing, Groessenberechnung
//
// Unterstuetzt werden die unquantisierten Typen, in denen Vision-Checkpoints
// ausgeliefert werden. Quantisierte Kinds werden beim Dekodieren abgelehnt.

package ggml

import (
	"fmt"
	"strings"
)

// TensorType ist der Datentyp eines Tensors (ggml type id)
type TensorType uint32

const (
	TensorTypeF32  TensorType = 0
	TensorTypeF16  TensorType = 1
	TensorTypeI8   TensorType = 24
	TensorTypeI16  TensorType = 25
	TensorTypeI32  TensorType = 26
	TensorTypeI64  TensorType = 27
	TensorTypeF64  TensorType = 28
	TensorTypeBF16 TensorType = 30
)

// ParseTensorType parst einen Typ-Namen
func ParseTensorType(s string) (TensorType, error) {
	switch strings.ToUpper(s) {
	case "F32":
		return TensorTypeF32, nil
	case "F16":
		return TensorTypeF16, nil
	case "I8":
		return TensorTypeI8, nil
	case "I16":
		return TensorTypeI16, nil
	case "I32":
		return TensorTypeI32, nil
	case "I64":
		return TensorTypeI64, nil
	case "F64":
		return TensorTypeF64, nil
	case "BF16":
		return TensorTypeBF16, nil
	default:
		return 0, fmt.Errorf("unsupported tensor type %q", s)
	}
}

// supported prueft ob der Typ gelesen/geschrieben werden kann
func (t TensorType) supported() bool {
	switch t {
	case TensorTypeF32, TensorTypeF16, TensorTypeI8, TensorTypeI16,
		TensorTypeI32, TensorTypeI64, TensorTypeF64, TensorTypeBF16:
		return true
	default:
		return false
	}
}

// TypeSize gibt die Byte-Groesse pro Element zurueck
func (t TensorType) TypeSize() uint64 {
	switch t {
	case TensorTypeF32:
		return 4
	case TensorTypeF16:
		return 2
	case TensorTypeI8:
		return 1
	case TensorTypeI16:
		return 2
	case TensorTypeI32:
		return 4
	case TensorTypeI64:
		return 8
	case TensorTypeF64:
		return 8
	case TensorTypeBF16:
		return 2
	default:
		return 0
	}
}

// String gibt den Typ-Namen zurueck
func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeI8:
		return "I8"
	case TensorTypeI16:
		return "I16"
	case TensorTypeI32:
		return "I32"
	case TensorTypeI64:
		return "I64"
	case TensorTypeF64:
		return "F64"
	case TensorTypeBF16:
		return "BF16"
	default:
		return "unknown"
	}
}
