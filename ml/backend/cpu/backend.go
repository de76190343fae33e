// backend.go - Backend-Struktur und Basis-Methoden
// Enthaelt: Backend struct, New(), Close(), einfache Getter

package cpu

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hybridvit/hybridvit/envconfig"
	"github.com/hybridvit/hybridvit/fs"
	fsggml "github.com/hybridvit/hybridvit/fs/ggml"
	"github.com/hybridvit/hybridvit/ml"
)

func init() {
	ml.RegisterBackend("cpu", New)
}

var once sync.Once

// Backend fuehrt alle Tensor-Operationen auf der CPU in float32 aus
type Backend struct {
	modelPath string
	meta      *fsggml.GGML

	// tensors haelt die Modellgewichte nach Namen. Die Shapes werden
	// beim Erstellen angelegt, die Daten erst durch Load gefuellt.
	tensors map[string]*Tensor

	numThreads int
}

// New erstellt ein neues CPU-Backend fuer das angegebene Modell
func New(modelPath string, params ml.BackendParams) (ml.Backend, error) {
	r, err := os.Open(modelPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	meta, err := fsggml.Decode(r, -1)
	if err != nil {
		return nil, err
	}

	once.Do(func() {
		slog.Info(
			"",
			"architecture", meta.KV().Architecture(),
			"file_type", meta.KV().FileType(),
			"name", meta.KV().String("general.name"),
			"num_tensors", len(meta.Tensors().Items()),
			"num_key_values", len(meta.KV()),
		)
	})

	b := &Backend{
		modelPath:  modelPath,
		meta:       meta,
		tensors:    make(map[string]*Tensor, len(meta.Tensors().Items())),
		numThreads: params.NumThreads,
	}
	if b.numThreads <= 0 {
		b.numThreads = envconfig.NumThreads()
	}

	for _, t := range meta.Tensors().Items() {
		shape := make([]int, len(t.Shape))
		for i, dim := range t.Shape {
			shape[i] = int(dim)
		}

		tt, err := newTensor(b, ml.DTypeF32, shape)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		b.tensors[t.Name] = tt
	}

	return b, nil
}

// Close gibt alle Ressourcen des Backends frei
func (b *Backend) Close() {
	if b == nil {
		return
	}
	b.tensors = nil
}

// Config gibt die Modell-Konfiguration zurueck
func (b *Backend) Config() fs.Config {
	return b.meta.KV()
}

// Get gibt einen Tensor nach Namen zurueck
func (b *Backend) Get(name string) ml.Tensor {
	if t, ok := b.tensors[name]; ok {
		return t
	}

	return nil
}

// NewContext erstellt einen neuen Berechnungskontext
func (b *Backend) NewContext() ml.Context {
	return &Context{b: b}
}

// NewContextSize erstellt einen Kontext. Die Groesse ist ein Hinweis
// auf die erwartete Graph-Groesse und wird vom CPU-Backend ignoriert.
func (b *Backend) NewContextSize(int) ml.Context {
	return b.NewContext()
}
