// tensor_nn.go - Neuronale Netzwerk-Operationen
// Enthaelt: Softmax, Aktivierungen, Conv2D, Conv2DDepthwise, AvgPool2D, MaxPool2D

package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/hybridvit/hybridvit/ml"
)

// parallelFor verteilt n unabhaengige Arbeitspakete auf die Worker
// des Backends
func (t *Tensor) parallelFor(n int, f func(i int)) {
	var g errgroup.Group
	g.SetLimit(t.b.numThreads)
	for i := range n {
		g.Go(func() error {
			f(i)
			return nil
		})
	}

	g.Wait()
}

// unary wendet f auf jedes Element an
func (t *Tensor) unary(f func(x float32) float32) *Tensor {
	out := t.empty(t.dims[:]...)

	var n int
	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				for i0 := range t.dims[0] {
					out.data[n] = f(t.at(i0, i1, i2, i3))
					n++
				}
			}
		}
	}

	return out
}

// Softmax normalisiert die innerste Dimension zu einer
// Wahrscheinlichkeitsverteilung
func (t *Tensor) Softmax(ctx ml.Context) ml.Tensor {
	out := t.empty(t.dims[:]...)

	for i3 := range t.dims[3] {
		for i2 := range t.dims[2] {
			for i1 := range t.dims[1] {
				m := math32.Inf(-1)
				for i0 := range t.dims[0] {
					m = max(m, t.at(i0, i1, i2, i3))
				}

				var sum float32
				for i0 := range t.dims[0] {
					e := math32.Exp(t.at(i0, i1, i2, i3) - m)
					out.set(i0, i1, i2, i3, e)
					sum += e
				}

				for i0 := range t.dims[0] {
					out.set(i0, i1, i2, i3, out.at(i0, i1, i2, i3)/sum)
				}
			}
		}
	}

	return out
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func gelu(x float32) float32 {
	return 0.5 * x * (1 + math32.Tanh(0.7978845608*(x+0.044715*x*x*x)))
}

// Tanh wendet den Tangens Hyperbolicus elementweise an
func (t *Tensor) Tanh(ctx ml.Context) ml.Tensor {
	return t.unary(math32.Tanh)
}

// Sigmoid wendet die logistische Funktion elementweise an
func (t *Tensor) Sigmoid(ctx ml.Context) ml.Tensor {
	return t.unary(sigmoid)
}

// GELU wendet die GELU-Aktivierung an. Mit up wird das Ergebnis
// elementweise mit up multipliziert (GEGLU)
func (t *Tensor) GELU(ctx ml.Context, up ...ml.Tensor) ml.Tensor {
	out := t.unary(gelu)
	if len(up) > 0 {
		return out.Mul(ctx, up[0])
	}

	return out
}

// SILU wendet die SiLU-Aktivierung an. Mit up wird das Ergebnis
// elementweise mit up multipliziert (SwiGLU)
func (t *Tensor) SILU(ctx ml.Context, up ...ml.Tensor) ml.Tensor {
	out := t.unary(func(x float32) float32 { return x * sigmoid(x) })
	if len(up) > 0 {
		return out.Mul(ctx, up[0])
	}

	return out
}

// RELU wendet die ReLU-Aktivierung an. Mit up wird das Ergebnis
// elementweise mit up multipliziert (ReGLU)
func (t *Tensor) RELU(ctx ml.Context, up ...ml.Tensor) ml.Tensor {
	out := t.unary(func(x float32) float32 { return max(0, x) })
	if len(up) > 0 {
		return out.Mul(ctx, up[0])
	}

	return out
}

// convOutputSize berechnet die Ausgabegroesse einer Faltung
func convOutputSize(in, k, s, p, d int) int {
	return (in+2*p-d*(k-1)-1)/s + 1
}

// Conv2D faltet t2 mit dem Kernel t. Der Kernel hat die Form
// (KW, KH, Cin, Cout), die Eingabe (W, H, Cin, N) und das Ergebnis
// (OW, OH, Cout, N).
func (t *Tensor) Conv2D(ctx ml.Context, t2 ml.Tensor, s0, s1, p0, p1, d0, d1 int) ml.Tensor {
	u := t2.(*Tensor)
	if t.dims[2] != u.dims[2] {
		panic(fmt.Errorf("incompatible channels %v and %v", t.Shape(), u.Shape()))
	}

	ow := convOutputSize(u.dims[0], t.dims[0], s0, p0, d0)
	oh := convOutputSize(u.dims[1], t.dims[1], s1, p1, d1)
	if ow < 1 || oh < 1 {
		panic(fmt.Errorf("invalid convolution output %dx%d", ow, oh))
	}

	out := t.empty(ow, oh, t.dims[3], u.dims[3])
	t.parallelFor(u.dims[3]*t.dims[3], func(i int) {
		n, oc := i/t.dims[3], i%t.dims[3]
		for oy := range oh {
			for ox := range ow {
				var sum float32
				for ic := range u.dims[2] {
					for ky := range t.dims[1] {
						iy := oy*s1 + ky*d1 - p1
						if iy < 0 || iy >= u.dims[1] {
							continue
						}
						for kx := range t.dims[0] {
							ix := ox*s0 + kx*d0 - p0
							if ix < 0 || ix >= u.dims[0] {
								continue
							}
							sum += t.at(kx, ky, ic, oc) * u.at(ix, iy, ic, n)
						}
					}
				}
				out.set(ox, oy, oc, n, sum)
			}
		}
	})

	return out
}

// Conv2DDepthwise faltet jeden Kanal von t2 mit seinem eigenen
// Kernel. Der Kernel hat die Form (KW, KH, 1, C) und die Eingabe
// (W, H, C, N).
func (t *Tensor) Conv2DDepthwise(ctx ml.Context, t2 ml.Tensor, s0, s1, p0, p1, d0, d1 int) ml.Tensor {
	u := t2.(*Tensor)
	if t.dims[2] != 1 || t.dims[3] != u.dims[2] {
		panic(fmt.Errorf("incompatible channels %v and %v", t.Shape(), u.Shape()))
	}

	ow := convOutputSize(u.dims[0], t.dims[0], s0, p0, d0)
	oh := convOutputSize(u.dims[1], t.dims[1], s1, p1, d1)
	if ow < 1 || oh < 1 {
		panic(fmt.Errorf("invalid convolution output %dx%d", ow, oh))
	}

	out := t.empty(ow, oh, u.dims[2], u.dims[3])
	t.parallelFor(u.dims[3]*u.dims[2], func(i int) {
		n, c := i/u.dims[2], i%u.dims[2]
		for oy := range oh {
			for ox := range ow {
				var sum float32
				for ky := range t.dims[1] {
					iy := oy*s1 + ky*d1 - p1
					if iy < 0 || iy >= u.dims[1] {
						continue
					}
					for kx := range t.dims[0] {
						ix := ox*s0 + kx*d0 - p0
						if ix < 0 || ix >= u.dims[0] {
							continue
						}
						sum += t.at(kx, ky, 0, c) * u.at(ix, iy, c, n)
					}
				}
				out.set(ox, oy, c, n, sum)
			}
		}
	})

	return out
}

// AvgPool2D bildet den Mittelwert ueber quadratische Fenster der
// Groesse k mit Schrittweite s. Padding-Positionen zaehlen als Null.
func (t *Tensor) AvgPool2D(ctx ml.Context, k, s, p int) ml.Tensor {
	ow := convOutputSize(t.dims[0], k, s, p, 1)
	oh := convOutputSize(t.dims[1], k, s, p, 1)
	if ow < 1 || oh < 1 {
		panic(fmt.Errorf("invalid pooling output %dx%d", ow, oh))
	}

	out := t.empty(ow, oh, t.dims[2], t.dims[3])
	area := float32(k * k)
	for n := range t.dims[3] {
		for c := range t.dims[2] {
			for oy := range oh {
				for ox := range ow {
					var sum float32
					for ky := range k {
						iy := oy*s + ky - p
						if iy < 0 || iy >= t.dims[1] {
							continue
						}
						for kx := range k {
							ix := ox*s + kx - p
							if ix < 0 || ix >= t.dims[0] {
								continue
							}
							sum += t.at(ix, iy, c, n)
						}
					}
					out.set(ox, oy, c, n, sum/area)
				}
			}
		}
	}

	return out
}

// MaxPool2D bildet das Maximum ueber quadratische Fenster der
// Groesse k mit Schrittweite s. Padding-Positionen werden ignoriert.
func (t *Tensor) MaxPool2D(ctx ml.Context, k, s, p int) ml.Tensor {
	ow := convOutputSize(t.dims[0], k, s, p, 1)
	oh := convOutputSize(t.dims[1], k, s, p, 1)
	if ow < 1 || oh < 1 {
		panic(fmt.Errorf("invalid pooling output %dx%d", ow, oh))
	}

	out := t.empty(ow, oh, t.dims[2], t.dims[3])
	for n := range t.dims[3] {
		for c := range t.dims[2] {
			for oy := range oh {
				for ox := range ow {
					m := math32.Inf(-1)
					for ky := range k {
						iy := oy*s + ky - p
						if iy < 0 || iy >= t.dims[1] {
							continue
						}
						for kx := range k {
							ix := ox*s + kx - p
							if ix < 0 || ix >= t.dims[0] {
								continue
							}
							m = max(m, t.at(ix, iy, c, n))
						}
					}
					out.set(ox, oy, c, n, m)
				}
			}
		}
	}

	return out
}
