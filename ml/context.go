// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und Compute-Kontexte.
package ml

// Context represents an execution context for tensor operations.
type Context interface {
	Empty(dtype DType, shape ...int) Tensor
	Zeros(dtype DType, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor

	Forward(...Tensor) Context
	Compute(...Tensor)

	Close()

	// Input returns a context appropriate for creating tensors that are
	// inputs to the model (which includes things like output locations)
	Input() Context
}

// Tensor represents a multi-dimensional array with various operations.
//
// Tensors have up to four dimensions. Dim(0) is the innermost
// (contiguous) dimension. Images are laid out as (W, H, C, N) and
// token sequences as (hidden, tokens, batch).
type Tensor interface {
	Dim(n int) int
	Stride(n int) int

	Shape() []int
	DType() DType

	Bytes() []byte
	Floats() []float32

	Add(ctx Context, t2 Tensor) Tensor
	Sub(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor
	Div(ctx Context, t2 Tensor) Tensor

	Mulmat(ctx Context, t2 Tensor) Tensor
	MulmatFullPrec(ctx Context, t2 Tensor) Tensor

	Softmax(ctx Context) Tensor
	LayerNorm(ctx Context, weight, bias Tensor, eps float32) Tensor
	Scale(ctx Context, s float64) Tensor

	// Mean, Variance reduce the innermost dimension to length 1.
	Mean(ctx Context) Tensor
	Variance(ctx Context) Tensor
	Sqrt(ctx Context) Tensor

	// Conv2D convolves t2 with the receiver as kernel. The kernel is
	// laid out as (KW, KH, Cin, Cout), the input as (W, H, Cin, N).
	Conv2D(ctx Context, t2 Tensor, s0, s1, p0, p1, d0, d1 int) Tensor

	// Conv2DDepthwise convolves each channel of t2 with its own kernel.
	// The kernel is laid out as (KW, KH, 1, C).
	Conv2DDepthwise(ctx Context, t2 Tensor, s0, s1, p0, p1, d0, d1 int) Tensor

	// AvgPool2D, MaxPool2D pool square windows of size k with stride s.
	// Average pooling counts padding as zero, max pooling ignores it.
	AvgPool2D(ctx Context, k, s int, p int) Tensor
	MaxPool2D(ctx Context, k, s int, p int) Tensor

	Tanh(ctx Context) Tensor
	GELU(ctx Context, up ...Tensor) Tensor
	SILU(ctx Context, up ...Tensor) Tensor
	RELU(ctx Context, up ...Tensor) Tensor
	Sigmoid(ctx Context) Tensor

	Reshape(ctx Context, shape ...int) Tensor
	Permute(ctx Context, shape ...int) Tensor
	Contiguous(ctx Context, shape ...int) Tensor

	// Pad appends zeros at the end of each dimension.
	Pad(ctx Context, shape ...int) Tensor

	// Repeat repeats the tensor n times along dimension dim
	Repeat(ctx Context, dim, n int) Tensor
	Concat(ctx Context, t2 Tensor, dim int) Tensor
	Copy(ctx Context, t2 Tensor) Tensor

	Slice(ctx Context, dim, low, high, step int) Tensor
}
