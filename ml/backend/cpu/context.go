// context.go - Eager-Kontext fuer das CPU-Backend
// Enthaelt: Context struct, Empty, Zeros, FromFloats, Forward, Compute

package cpu

import (
	"fmt"

	"github.com/hybridvit/hybridvit/ml"
)

// Context erstellt Tensoren fuer ein Backend. Alle Operationen
// werden sofort ausgefuehrt, Forward und Compute sind daher No-Ops.
type Context struct {
	b *Backend
}

func checkShape(shape ...int) error {
	for _, dim := range shape {
		if dim < 1 {
			return fmt.Errorf("invalid shape: %v", shape)
		}
	}

	return nil
}

// Empty erstellt einen uninitialisierten Tensor
func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	if err := checkShape(shape...); err != nil {
		panic(err)
	}

	t, err := newTensor(c.b, dtype, shape)
	if err != nil {
		panic(err)
	}

	return t
}

// Zeros erstellt einen mit Nullen initialisierten Tensor
func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	return c.Empty(dtype, shape...)
}

// FromFloats erstellt einen Tensor aus float32-Daten
func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	if err := checkShape(shape...); err != nil {
		panic(err)
	}

	t, err := newTensor(c.b, ml.DTypeF32, shape)
	if err != nil {
		panic(err)
	}

	if len(s) != t.elements() {
		panic(fmt.Errorf("invalid length %d for shape %v", len(s), shape))
	}

	copy(t.data, s)
	return t
}

// Forward markiert Ausgabe-Tensoren. Im Eager-Backend ein No-Op.
func (c *Context) Forward(...ml.Tensor) ml.Context {
	return c
}

// Compute fuehrt den Graphen aus. Im Eager-Backend ein No-Op.
func (c *Context) Compute(...ml.Tensor) {}

// Input gibt den Kontext fuer Eingabe-Tensoren zurueck
func (c *Context) Input() ml.Context {
	return c
}

// Close gibt die Ressourcen des Kontexts frei
func (c *Context) Close() {}
