// backend_load.go - Laden der Modellgewichte
// Enthaelt: Load(), loadTensor() und die DType-Konvertierung nach float32

package cpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"

	fsggml "github.com/hybridvit/hybridvit/fs/ggml"
)

// Load laedt die Modellgewichte in den Speicher.
// Jeder Tensor wird in einer eigenen Goroutine mit eigenem File-Descriptor
// gelesen, damit das Betriebssystem sequentiell lesen kann.
func (b *Backend) Load(ctx context.Context, progress func(float32)) error {
	var doneBytes atomic.Uint64
	totalBytes := uint64(b.meta.Length) - b.meta.Tensors().Offset

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.numThreads)
	for _, t := range b.meta.Tensors().Items() {
		g.Go(func() error {
			return b.loadTensor(ctx, t, &doneBytes, totalBytes, progress)
		})
	}

	return g.Wait()
}

// loadTensor laedt einen einzelnen Tensor und konvertiert ihn nach float32
func (b *Backend) loadTensor(ctx context.Context, t *fsggml.Tensor, doneBytes *atomic.Uint64, totalBytes uint64, progress func(float32)) error {
	tt, ok := b.tensors[t.Name]
	if !ok {
		return fmt.Errorf("unassigned tensor: %s", t.Name)
	}

	file, err := os.Open(b.modelPath)
	if err != nil {
		slog.Warn("file open error", "file", b.modelPath, "error", err)
		return err
	}
	defer file.Close()
	sr := io.NewSectionReader(file, int64(b.meta.Tensors().Offset+t.Offset), int64(t.Size()))

	typeSize := fsggml.TensorType(t.Kind).TypeSize()
	if typeSize == 0 {
		return fmt.Errorf("tensor %q: unsupported tensor type %d", t.Name, t.Kind)
	}

	bts := make([]byte, 128<<10)

	var e uint64
	for e < t.Elements() {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(sr, bts[:min(len(bts), int((t.Elements()-e)*typeSize))])
		if err != nil {
			slog.Warn("file read error", "file", b.modelPath, "error", err)
			return err
		}

		count := uint64(n) / typeSize
		if err := convertToF32(bts[:n], fsggml.TensorType(t.Kind), tt.data[e:e+count]); err != nil {
			return fmt.Errorf("tensor %q: %w", t.Name, err)
		}

		e += count

		if progress != nil {
			done := doneBytes.Add(uint64(n))
			progress(float32(done) / float32(totalBytes))
		}
	}

	return nil
}

// convertToF32 dekodiert rohe Tensor-Bytes nach float32
func convertToF32(bts []byte, kind fsggml.TensorType, dst []float32) error {
	switch kind {
	case fsggml.TensorTypeF32:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(bts[i*4:]))
		}
	case fsggml.TensorTypeF16:
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(bts[i*2:])).Float32()
		}
	case fsggml.TensorTypeBF16:
		copy(dst, bfloat16.DecodeFloat32(bts[:len(dst)*2]))
	case fsggml.TensorTypeF64:
		for i := range dst {
			dst[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(bts[i*8:])))
		}
	case fsggml.TensorTypeI8:
		for i := range dst {
			dst[i] = float32(int8(bts[i]))
		}
	case fsggml.TensorTypeI16:
		for i := range dst {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(bts[i*2:])))
		}
	case fsggml.TensorTypeI32:
		for i := range dst {
			dst[i] = float32(int32(binary.LittleEndian.Uint32(bts[i*4:])))
		}
	case fsggml.TensorTypeI64:
		for i := range dst {
			dst[i] = float32(int64(binary.LittleEndian.Uint64(bts[i*8:])))
		}
	default:
		return fmt.Errorf("unsupported tensor type %s", kind)
	}

	return nil
}
