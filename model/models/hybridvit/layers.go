package hybridvit

import (
	"errors"
	"math"

	"github.com/hybridvit/hybridvit/ml"
	"github.com/hybridvit/hybridvit/ml/nn"
)

// ============================================================================
// Encoder Layers - Attention, MLP und Encoder-Block fuer den Hybrid-ViT
// ============================================================================
//
// Dieses Modul enthaelt:
// - SelfAttention: Multi-Head Attention mit Attention-Dropout
// - MLP: Feed-Forward-Block mit GELU und Dropout
// - EncoderBlock: MBConv-Paare um Attention- und MLP-Zweig

// SelfAttention implementiert Multi-Head Attention ueber die Token-Sequenz
type SelfAttention struct {
	Query  *nn.Linear `gguf:"attn_q"`
	Key    *nn.Linear `gguf:"attn_k"`
	Value  *nn.Linear `gguf:"attn_v"`
	Output *nn.Linear `gguf:"attn_output"`
}

// Forward fuehrt die Self-Attention Berechnung durch
func (sa *SelfAttention) Forward(ctx ml.Context, hiddenStates ml.Tensor, fwd *forwardPass) ml.Tensor {
	seq, batch := hiddenStates.Dim(1), hiddenStates.Dim(2)

	query := sa.Query.Forward(ctx, hiddenStates)
	key := sa.Key.Forward(ctx, hiddenStates)
	value := sa.Value.Forward(ctx, hiddenStates)

	query = query.Reshape(ctx, fwd.headDim, fwd.numHeads, seq, batch).Permute(ctx, 0, 2, 1, 3)
	key = key.Reshape(ctx, fwd.headDim, fwd.numHeads, seq, batch).Permute(ctx, 0, 2, 1, 3)
	value = value.Reshape(ctx, fwd.headDim, fwd.numHeads, seq, batch).Permute(ctx, 1, 2, 0, 3).Contiguous(ctx)

	// Skalierungsfaktor fuer Scaled Dot-Product Attention
	scale := 1.0 / math.Sqrt(float64(fwd.headDim))

	kq := key.MulmatFullPrec(ctx, query)
	kq = kq.Scale(ctx, scale)
	kq = kq.Softmax(ctx)
	kq = fwd.attnDrop.Forward(ctx, kq, fwd.rng)

	kqv := value.Mulmat(ctx, kq)
	attention := kqv.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
	attention = attention.Reshape(ctx, fwd.hiddenSize, seq, batch)

	return sa.Output.Forward(ctx, attention)
}

// MLP implementiert den Feed-Forward-Block (Up -> GELU -> Down)
type MLP struct {
	Up   *nn.Linear `gguf:"ffn_up"`
	Down *nn.Linear `gguf:"ffn_down"`
}

// Forward fuehrt die MLP-Berechnung mit Dropout nach beiden Projektionen durch
func (mlp *MLP) Forward(ctx ml.Context, hiddenStates ml.Tensor, fwd *forwardPass) ml.Tensor {
	hiddenStates = mlp.Up.Forward(ctx, hiddenStates).GELU(ctx)
	hiddenStates = fwd.drop.Forward(ctx, hiddenStates, fwd.rng)
	hiddenStates = mlp.Down.Forward(ctx, hiddenStates)
	return fwd.drop.Forward(ctx, hiddenStates, fwd.rng)
}

// EncoderBlock kombiniert MBConv-Paare mit Attention und MLP.
// Beide Residual-Verbindungen ueberspringen auch die MBConv-Bloecke.
type EncoderBlock struct {
	MBConv        [4]*MBConv    `gguf:"mbconv"`
	AttnNorm      *nn.LayerNorm `gguf:"attn_norm"`
	SelfAttention *SelfAttention
	FFNNorm       *nn.LayerNorm `gguf:"ffn_norm"`
	MLP           *MLP
}

// Forward fuehrt einen Encoder-Block durch
func (e *EncoderBlock) Forward(ctx ml.Context, hiddenStates ml.Tensor, fwd *forwardPass) ml.Tensor {
	// Attention-Zweig: MBConv-Paar -> Norm -> Attention -> Dropout,
	// Residual von den Block-Eingaben
	inputs := hiddenStates
	x := sequenceToGrid(ctx, hiddenStates)
	x = e.MBConv[0].Forward(ctx, x, fwd)
	x = e.MBConv[1].Forward(ctx, x, fwd)
	hiddenStates = gridToSequence(ctx, x)

	hiddenStates = e.AttnNorm.Forward(ctx, hiddenStates, fwd.eps)
	hiddenStates = e.SelfAttention.Forward(ctx, hiddenStates, fwd)
	hiddenStates = fwd.drop.Forward(ctx, hiddenStates, fwd.rng)
	hiddenStates = hiddenStates.Add(ctx, inputs)

	// MLP-Zweig: Norm -> MBConv-Paar -> MLP
	y := e.FFNNorm.Forward(ctx, hiddenStates, fwd.eps)
	g := sequenceToGrid(ctx, y)
	g = e.MBConv[2].Forward(ctx, g, fwd)
	g = e.MBConv[3].Forward(ctx, g, fwd)
	y = gridToSequence(ctx, g)
	y = e.MLP.Forward(ctx, y, fwd)

	return hiddenStates.Add(ctx, y)
}

// validate prueft ob alle Gewichte des Blocks geladen wurden
func (e *EncoderBlock) validate() error {
	for j := range e.MBConv {
		if err := e.MBConv[j].validate(); err != nil {
			return err
		}
	}
	if e.AttnNorm == nil {
		return errors.New("missing tensor attn_norm")
	}
	if e.SelfAttention == nil || e.SelfAttention.Query == nil || e.SelfAttention.Key == nil ||
		e.SelfAttention.Value == nil || e.SelfAttention.Output == nil {
		return errors.New("missing attention tensors attn_{q,k,v,output}")
	}
	if e.FFNNorm == nil {
		return errors.New("missing tensor ffn_norm")
	}
	if e.MLP == nil || e.MLP.Up == nil || e.MLP.Down == nil {
		return errors.New("missing feed forward tensors ffn_{up,down}")
	}
	return nil
}
