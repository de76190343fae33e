// tensor_test.go - Unit Tests fuer Tensor-Erstellung und Form-Operationen
//
// Testet FromFloats, Shape, Reshape, Permute, Slice, Pad, Concat und
// die elementweisen Operationen gegen von Hand berechnete Werte.
package cpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chewxy/math32"

	"github.com/hybridvit/hybridvit/ml"
)

// testContext erstellt einen Kontext ohne Modell-Datei
func testContext() *Context {
	return &Context{b: &Backend{numThreads: 2}}
}

// floatsEqual vergleicht zwei Float-Slices mit Toleranz
func floatsEqual(t *testing.T, got, want []float32, tol float32) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("Laenge = %d, erwartet %d", len(got), len(want))
	}

	for i := range want {
		if math32.Abs(got[i]-want[i]) > tol {
			t.Errorf("Wert %d = %f, erwartet %f", i, got[i], want[i])
		}
	}
}

func TestFromFloats(t *testing.T) {
	ctx := testContext()

	tt := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	if tt.Dim(0) != 2 || tt.Dim(1) != 3 {
		t.Errorf("Dims = %dx%d, erwartet 2x3", tt.Dim(0), tt.Dim(1))
	}
	if tt.DType() != ml.DTypeF32 {
		t.Errorf("DType = %d, erwartet %d", tt.DType(), ml.DTypeF32)
	}
	if tt.Stride(0) != 4 || tt.Stride(1) != 8 {
		t.Errorf("Strides = %d,%d, erwartet 4,8", tt.Stride(0), tt.Stride(1))
	}

	floatsEqual(t, tt.Floats(), []float32{1, 2, 3, 4, 5, 6}, 0)
}

func TestShapeTrailingOnes(t *testing.T) {
	ctx := testContext()

	cases := []struct {
		name  string
		shape []int
		want  []int
	}{
		{"Vektor", []int{4, 1, 1}, []int{4}},
		{"Matrix", []int{2, 3}, []int{2, 3}},
		{"Skalar", []int{1}, []int{1}},
		{"InnereEins", []int{1, 1, 3}, []int{1, 1, 3}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tt := ctx.Zeros(ml.DTypeF32, c.shape...)
			got := tt.Shape()
			if len(got) != len(c.want) {
				t.Fatalf("Shape = %v, erwartet %v", got, c.want)
			}
			for i := range c.want {
				if got[i] != c.want[i] {
					t.Errorf("Shape = %v, erwartet %v", got, c.want)
				}
			}
		})
	}
}

func TestAddBroadcast(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := ctx.FromFloats([]float32{10, 20}, 2, 1)

	got := a.Add(ctx, b)
	floatsEqual(t, got.Floats(), []float32{11, 22, 13, 24, 15, 26}, 0)
}

func TestSubMulDiv(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{8, 6, 4, 2}, 4)
	b := ctx.FromFloats([]float32{2, 2, 4, 2}, 4)

	floatsEqual(t, a.Sub(ctx, b).Floats(), []float32{6, 4, 0, 0}, 0)
	floatsEqual(t, a.Mul(ctx, b).Floats(), []float32{16, 12, 16, 4}, 0)
	floatsEqual(t, a.Div(ctx, b).Floats(), []float32{4, 3, 1, 1}, 0)
}

func TestScale(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, -2, 3}, 3)
	floatsEqual(t, a.Scale(ctx, 0.5).Floats(), []float32{0.5, -1, 1.5}, 1e-6)
}

func TestPermute(t *testing.T) {
	ctx := testContext()

	// a(i0, i1) mit a(0,0)=1, a(1,0)=2, a(0,1)=3, ...
	a := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := a.Permute(ctx, 1, 0)
	if got.Dim(0) != 3 || got.Dim(1) != 2 {
		t.Errorf("Dims = %dx%d, erwartet 3x2", got.Dim(0), got.Dim(1))
	}

	// Transponiert: r(x, y) = a(y, x)
	floatsEqual(t, got.Floats(), []float32{1, 3, 5, 2, 4, 6}, 0)
}

func TestReshape(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)

	got := a.Reshape(ctx, 3, -1)
	if got.Dim(0) != 3 || got.Dim(1) != 2 {
		t.Errorf("Dims = %dx%d, erwartet 3x2", got.Dim(0), got.Dim(1))
	}
	floatsEqual(t, got.Floats(), []float32{1, 2, 3, 4, 5, 6}, 0)

	// Reshape auf einem nicht zusammenhaengenden Tensor materialisiert
	// die logische Reihenfolge
	flat := a.Permute(ctx, 1, 0).Reshape(ctx, 6)
	floatsEqual(t, flat.Floats(), []float32{1, 3, 5, 2, 4, 6}, 0)
}

func TestContiguous(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)
	got := a.Permute(ctx, 1, 0).Contiguous(ctx)

	if got.Dim(0) != 2 || got.Dim(1) != 2 {
		t.Errorf("Dims = %dx%d, erwartet 2x2", got.Dim(0), got.Dim(1))
	}
	floatsEqual(t, got.Floats(), []float32{1, 3, 2, 4}, 0)
}

func TestSlice(t *testing.T) {
	ctx := testContext()

	t.Run("Schritt1", func(t *testing.T) {
		a := ctx.FromFloats([]float32{1, 2, 3, 4}, 4)
		got := a.Slice(ctx, 0, 1, 3, 1)
		if got.Dim(0) != 2 {
			t.Errorf("Dim(0) = %d, erwartet 2", got.Dim(0))
		}
		floatsEqual(t, got.Floats(), []float32{2, 3}, 0)
	})

	t.Run("Schritt2", func(t *testing.T) {
		a := ctx.FromFloats([]float32{1, 2, 3, 4, 5}, 5)
		got := a.Slice(ctx, 0, 0, 5, 2)
		floatsEqual(t, got.Floats(), []float32{1, 3, 5}, 0)
	})

	t.Run("ErstesToken", func(t *testing.T) {
		// (hidden, tokens) auf das erste Token reduzieren
		a := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
		got := a.Slice(ctx, 1, 0, 1, 1)
		if got.Dim(0) != 2 || got.Dim(1) != 1 {
			t.Errorf("Dims = %dx%d, erwartet 2x1", got.Dim(0), got.Dim(1))
		}
		floatsEqual(t, got.Floats(), []float32{1, 2}, 0)
	})
}

func TestPad(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)
	got := a.Pad(ctx, 1, 1, 0, 0)

	if got.Dim(0) != 3 || got.Dim(1) != 3 {
		t.Errorf("Dims = %dx%d, erwartet 3x3", got.Dim(0), got.Dim(1))
	}
	floatsEqual(t, got.Floats(), []float32{1, 2, 0, 3, 4, 0, 0, 0, 0}, 0)
}

func TestConcat(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)
	b := ctx.FromFloats([]float32{5, 6}, 2, 1)

	got := a.Concat(ctx, b, 1)
	if got.Dim(0) != 2 || got.Dim(1) != 3 {
		t.Errorf("Dims = %dx%d, erwartet 2x3", got.Dim(0), got.Dim(1))
	}
	floatsEqual(t, got.Floats(), []float32{1, 2, 3, 4, 5, 6}, 0)

	got = b.Concat(ctx, a, 1)
	floatsEqual(t, got.Floats(), []float32{5, 6, 1, 2, 3, 4}, 0)
}

func TestRepeat(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2}, 2, 1)
	got := a.Repeat(ctx, 1, 3)

	if got.Dim(0) != 2 || got.Dim(1) != 3 {
		t.Errorf("Dims = %dx%d, erwartet 2x3", got.Dim(0), got.Dim(1))
	}
	floatsEqual(t, got.Floats(), []float32{1, 2, 1, 2, 1, 2}, 0)
}

func TestMeanVariance(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1, 2, 3, 4, 10, 10, 10, 10}, 4, 2)

	mean := a.Mean(ctx)
	if mean.Dim(0) != 1 || mean.Dim(1) != 2 {
		t.Errorf("Dims = %dx%d, erwartet 1x2", mean.Dim(0), mean.Dim(1))
	}
	floatsEqual(t, mean.Floats(), []float32{2.5, 10}, 1e-6)

	variance := a.Variance(ctx)
	floatsEqual(t, variance.Floats(), []float32{1.25, 0}, 1e-6)
}

func TestSqrt(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{4, 9, 16}, 3)
	floatsEqual(t, a.Sqrt(ctx).Floats(), []float32{2, 3, 4}, 1e-6)
}

func TestCopy(t *testing.T) {
	ctx := testContext()

	src := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	dst := ctx.Zeros(ml.DTypeF32, 6)

	got := src.Copy(ctx, dst)
	floatsEqual(t, got.Floats(), []float32{1, 2, 3, 4, 5, 6}, 0)
	floatsEqual(t, dst.Floats(), []float32{1, 2, 3, 4, 5, 6}, 0)
}

func TestBytes(t *testing.T) {
	ctx := testContext()

	a := ctx.FromFloats([]float32{1.5, -2.25}, 2)
	bts := a.Bytes()
	if len(bts) != 8 {
		t.Fatalf("Bytes Laenge = %d, erwartet 8", len(bts))
	}

	got := []float32{
		math.Float32frombits(binary.LittleEndian.Uint32(bts[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(bts[4:])),
	}
	floatsEqual(t, got, []float32{1.5, -2.25}, 0)
}
