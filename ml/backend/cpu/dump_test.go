// dump_test.go - Unit Tests fuer die Dump-Darstellung von Tensoren
//
// Testet die textuelle Ausgabe fuer Vektoren und Matrizen inklusive
// Praezisions-Option.
package cpu

import (
	"strings"
	"testing"

	"github.com/hybridvit/hybridvit/ml"
)

func TestDumpMatrix(t *testing.T) {
	ctx := testContext()

	m := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)

	got := ml.Dump(ctx, m)
	want := "[[ 1.0000,  2.0000],\n [ 3.0000,  4.0000]]"
	if got != want {
		t.Errorf("Dump = %q, erwartet %q", got, want)
	}
}

func TestDumpPrecision(t *testing.T) {
	ctx := testContext()

	v := ctx.FromFloats([]float32{-1.25, 0.5}, 2)

	got := ml.Dump(ctx, v, ml.DumpWithPrecision(2))
	want := "[-1.25,  0.50]"
	if got != want {
		t.Errorf("Dump = %q, erwartet %q", got, want)
	}
}

func TestDumpEdgeItems(t *testing.T) {
	ctx := testContext()

	data := make([]float32, 10)
	for i := range data {
		data[i] = float32(i)
	}
	v := ctx.FromFloats(data, 10)

	got := ml.Dump(ctx, v, ml.DumpWithThreshold(4), ml.DumpWithEdgeItems(2))
	if !strings.Contains(got, "...") {
		t.Errorf("Dump = %q, erwartet Auslassung", got)
	}
	if !strings.Contains(got, "0.0000") || !strings.Contains(got, "9.0000") {
		t.Errorf("Dump = %q, erwartet Randwerte", got)
	}
}
