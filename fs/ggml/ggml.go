// Package ggml - GGUF Container fuer Modellgewichte
//
// Dieses Modul definiert die Kernstrukturen:
// - GGML: Hauptcontainer fuer geladene Modelle
// - container: Interface fuer Container-Formate
// - model: Interface fuer Model-Daten (KV + Tensors)
// - Decode: Laedt ein Modell aus einem Reader
package ggml

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hybridvit/hybridvit/fs/util/bufioutil"
)

// GGML repraesentiert ein geladenes Modell
type GGML struct {
	container
	model

	Length int64
}

// model definiert das Interface fuer Model-Daten
type model interface {
	KV() KV
	Tensors() Tensors
}

// container definiert das Interface fuer Container-Formate
type container interface {
	Name() string
	Decode(io.ReadSeeker) (model, error)
}

// Magic Constants fuer File-Format Erkennung
const (
	// FILE_MAGIC_GGUF_LE fuer GGUF Little-Endian
	FILE_MAGIC_GGUF_LE = 0x46554747
	// FILE_MAGIC_GGUF_BE fuer GGUF Big-Endian
	FILE_MAGIC_GGUF_BE = 0x47475546
)

// ErrUnsupportedFormat wird zurueckgegeben wenn das Format nicht unterstuetzt wird
var ErrUnsupportedFormat = errors.New("unsupported model format")

// Decode dekodiert ein Modell aus dem Reader.
//
// maxArraySize bestimmt die maximale Array-Groesse fuer KV-Werte.
// Bei negativem Wert werden alle Arrays vollstaendig gelesen.
func Decode(rs io.ReadSeeker, maxArraySize int) (*GGML, error) {
	rs = bufioutil.NewBufferedSeeker(rs, 32<<10)

	var magic uint32
	if err := binary.Read(rs, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}

	var c container
	switch magic {
	case FILE_MAGIC_GGUF_LE:
		c = &containerGGUF{ByteOrder: binary.LittleEndian, maxArraySize: maxArraySize}
	case FILE_MAGIC_GGUF_BE:
		c = &containerGGUF{ByteOrder: binary.BigEndian, maxArraySize: maxArraySize}
	default:
		return nil, fmt.Errorf("invalid file magic %#x: %w", magic, ErrUnsupportedFormat)
	}

	model, err := c.Decode(rs)
	if err != nil {
		return nil, err
	}

	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	return &GGML{
		container: c,
		model:     model,
		Length:    offset,
	}, nil
}
