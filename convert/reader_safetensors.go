// reader_safetensors.go - Safetensors-Reader
// Haupttypen: safetensorMetadata, safetensor
// Hauptfunktionen: parseSafetensors
package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// safetensorMetadata - Header-Eintrag einer Safetensors-Datei
type safetensorMetadata struct {
	Type    string   `json:"dtype"`
	Shape   []uint64 `json:"shape"`
	Offsets []uint64 `json:"data_offsets"`
}

// parseSafetensors - Liest Tensoren aus Safetensors-Dateien.
// Format: 8 Byte Header-Laenge (Little-Endian), JSON-Header mit
// dtype/shape/data_offsets pro Tensor, danach die Rohdaten.
func parseSafetensors(fsys fs.FS, replacer *strings.Replacer, ps ...string) ([]Tensor, error) {
	var ts []Tensor
	for _, p := range ps {
		f, err := fsys.Open(p)
		if err != nil {
			return nil, err
		}

		var n int64
		if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
			f.Close()
			return nil, err
		}

		b := bytes.NewBuffer(make([]byte, 0, n))
		if _, err = io.CopyN(b, f, n); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()

		var headers map[string]safetensorMetadata
		if err := json.NewDecoder(b).Decode(&headers); err != nil {
			return nil, err
		}

		for _, key := range slices.Sorted(maps.Keys(headers)) {
			if value := headers[key]; key != "__metadata__" {
				ts = append(ts, safetensor{
					fs:     fsys,
					path:   p,
					dtype:  value.Type,
					offset: safetensorsPad(n, int64(value.Offsets[0])),
					size:   int64(value.Offsets[1]) - int64(value.Offsets[0]),
					tensorBase: &tensorBase{
						name:  replacer.Replace(key),
						shape: value.Shape,
					},
				})
			}
		}
	}

	return ts, nil
}

// safetensorsPad - Absoluter Datei-Offset eines Tensors:
// 8 Byte Laengenfeld + Header-Laenge + relativer Daten-Offset
func safetensorsPad(n, offset int64) int64 {
	return 8 + n + offset
}

// safetensor - Ein Tensor innerhalb einer Safetensors-Datei
type safetensor struct {
	fs     fs.FS
	path   string
	dtype  string
	offset int64
	size   int64
	*tensorBase
}

func (st safetensor) Clone() Tensor {
	return safetensor{
		fs:     st.fs,
		path:   st.path,
		dtype:  st.dtype,
		offset: st.offset,
		size:   st.size,
		tensorBase: &tensorBase{
			name:     st.name,
			shape:    slices.Clone(st.shape),
			repacker: st.repacker,
		},
	}
}

// WriteTo - Dekodiert die Rohdaten nach float32, wendet den Repacker an
// und schreibt die Daten im Zieltyp
func (st safetensor) WriteTo(w io.Writer) (int64, error) {
	f, err := st.fs.Open(st.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if seeker, ok := f.(io.Seeker); ok {
		if _, err := seeker.Seek(st.offset, io.SeekStart); err != nil {
			return 0, err
		}
	} else if _, err := io.CopyN(io.Discard, f, st.offset); err != nil {
		return 0, err
	}

	var f32s []float32
	switch st.dtype {
	case "F32":
		f32s = make([]float32, st.size/4)
		if err = binary.Read(f, binary.LittleEndian, f32s); err != nil {
			return 0, err
		}
	case "F16":
		u16s := make([]uint16, st.size/2)
		if err = binary.Read(f, binary.LittleEndian, u16s); err != nil {
			return 0, err
		}

		f32s = make([]float32, 0, len(u16s))
		for _, u16 := range u16s {
			f32s = append(f32s, float16.Frombits(u16).Float32())
		}
	case "BF16":
		u8s := make([]uint8, st.size)
		if err = binary.Read(f, binary.LittleEndian, u8s); err != nil {
			return 0, err
		}

		f32s = bfloat16.DecodeFloat32(u8s)
	default:
		return 0, fmt.Errorf("unknown data type: %s", st.dtype)
	}

	if st.repacker != nil {
		f32s, err = st.repacker(st.Name(), f32s, st.Shape())
		if err != nil {
			return 0, err
		}
	}

	switch st.Kind() {
	case tensorKindF32:
		return 0, binary.Write(w, binary.LittleEndian, f32s)
	case tensorKindF16:
		f16s := make([]uint16, 0, len(f32s))
		for _, f32 := range f32s {
			f16s = append(f16s, float16.Fromfloat32(f32).Bits())
		}

		return 0, binary.Write(w, binary.LittleEndian, f16s)
	default:
		return 0, fmt.Errorf("unknown storage type: %d", st.Kind())
	}
}
