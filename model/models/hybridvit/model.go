// Package hybridvit - Hybrid Vision Transformer Implementierung
//
// Diese Datei enthaelt:
// - Options: Konfigurationsparameter fuer das Model
// - Transformer: Stem, Patch-Embedding, Encoder-Bloecke und Pooling
// - Model: Hauptmodel mit Registrierung und Validierung
//
// Der Hybrid-ViT kombiniert Self-Attention-Bloecke mit invertierten
// Residual-Faltungen (MBConv) und optional einem ResNet-Stem vor dem
// Patch-Embedding.
package hybridvit

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/hybridvit/hybridvit/fs"
	"github.com/hybridvit/hybridvit/ml"
	"github.com/hybridvit/hybridvit/ml/nn"
	"github.com/hybridvit/hybridvit/model"
)

// Pooling-Strategien fuer die Encoder-Ausgabe
const (
	poolingToken         = "token"
	poolingGAP           = "gap"
	poolingUnpooled      = "unpooled"
	poolingTokenUnpooled = "token_unpooled"
)

// Options enthaelt alle Konfigurationsparameter fuer das Model
type Options struct {
	// Transformer Dimensionen
	hiddenSize, numHeads, headDim int
	mlpDim                        int
	patchSize                     int
	imageSize                     int

	// Pooling und Kopf
	poolingType          string
	representationSize   int
	numClasses           int
	addPositionEmbedding bool

	// Dropout und Normalisierung
	dropout          float32
	attentionDropout float32
	eps              float32
	bnEps            float32
	bnMomentum       float32
	// Achse fuer Cross-Device-Statistiken, wird nur durchgereicht
	bnSyncAxis string

	// MBConv Parameter
	expandRatio float32
	seReduction int
	gnGroups    int
	gnEps       float32

	// ResNet-Stem Parameter, leer bedeutet kein Stem
	resnetLayers      []int32
	resnetWidthFactor int
}

// usesClassToken meldet ob die Pooling-Strategie ein Klassen-Token verlangt
func (o *Options) usesClassToken() bool {
	return o.poolingType == poolingToken || o.poolingType == poolingTokenUnpooled
}

// validPoolingType prueft ob die Pooling-Strategie bekannt ist
func validPoolingType(s string) bool {
	switch s {
	case poolingToken, poolingGAP, poolingUnpooled, poolingTokenUnpooled:
		return true
	}
	return false
}

// forwardPass buendelt die Konfiguration mit dem Train-Bit und der
// Dropout-Quelle eines einzelnen Forward-Durchlaufs
type forwardPass struct {
	*Options

	train    bool
	rng      *rand.Rand
	drop     *nn.Dropout
	attnDrop *nn.Dropout
}

// batchNorm wendet BatchNorm im passenden Modus an
func (p *forwardPass) batchNorm(ctx ml.Context, bn *nn.BatchNorm2D, t ml.Tensor) ml.Tensor {
	if p.train {
		return bn.ForwardTrain(ctx, t, p.bnEps, p.bnMomentum)
	}
	return bn.Forward(ctx, t, p.bnEps)
}

// Transformer enthaelt alle Gewichte des Hybrid-ViT
type Transformer struct {
	Stem              *Stem          `gguf:"stem"`
	PatchEmbedding    *nn.Conv2D     `gguf:"patch_embd"`
	ClassEmbedding    ml.Tensor      `gguf:"class_embd"`
	PositionEmbedding ml.Tensor      `gguf:"position_embd.weight"`
	Layers            []EncoderBlock `gguf:"blk"`
	PostNorm          *nn.LayerNorm  `gguf:"post_norm"`
	PreLogits         *nn.Linear     `gguf:"pre_logits"`
	Head              *nn.Linear     `gguf:"head"`

	*Options
}

// newTransformer liest die Konfiguration und legt die Layer-Struktur an
func newTransformer(c fs.Config) *Transformer {
	opts := &Options{
		hiddenSize:           int(c.Uint("vision.embedding_length", 768)),
		numHeads:             int(c.Uint("vision.attention.head_count", 12)),
		mlpDim:               int(c.Uint("vision.feed_forward_length", 3072)),
		patchSize:            int(c.Uint("vision.patch_size", 16)),
		imageSize:            int(c.Uint("vision.image_size", 224)),
		poolingType:          c.String("vision.pooling_type", poolingToken),
		representationSize:   int(c.Uint("vision.representation_length", 0)),
		numClasses:           int(c.Uint("vision.class_count", 0)),
		addPositionEmbedding: c.Bool("vision.position_embedding", true),
		dropout:              c.Float("vision.dropout", 0.1),
		attentionDropout:     c.Float("vision.attention.dropout", 0.1),
		eps:                  c.Float("vision.attention.layer_norm_epsilon", 1e-6),
		bnEps:                c.Float("vision.batch_norm.epsilon", 1e-5),
		bnMomentum:           c.Float("vision.batch_norm.momentum", 0.9),
		bnSyncAxis:           c.String("vision.batch_norm.sync_axis", "devices"),
		expandRatio:          c.Float("vision.expand_ratio", 1.0),
		seReduction:          int(c.Uint("vision.se_reduction", 4)),
		gnGroups:             int(c.Uint("vision.group_norm.groups", 32)),
		gnEps:                c.Float("vision.group_norm.epsilon", 1e-5),
		resnetLayers:         c.Ints("vision.resnet.layers", nil),
		resnetWidthFactor:    int(c.Uint("vision.resnet.width_factor", 1)),
	}
	if opts.numHeads > 0 {
		opts.headDim = opts.hiddenSize / opts.numHeads
	}

	t := &Transformer{
		Layers:  make([]EncoderBlock, c.Uint("vision.block_count", 12)),
		Options: opts,
	}

	// Alle MBConv-Bloecke laufen mit Stride 1 auf der Hidden-Dimension
	for i := range t.Layers {
		for j := range t.Layers[i].MBConv {
			t.Layers[i].MBConv[j] = newMBConv(opts.hiddenSize, opts.hiddenSize, 1)
		}
	}

	if len(opts.resnetLayers) > 0 {
		t.Stem = newStem(opts.resnetLayers)
	}

	return t
}

// Forward berechnet den Hybrid-ViT von den Pixeln bis zur gepoolten Ausgabe
func (t *Transformer) Forward(ctx ml.Context, pixels ml.Tensor, fwd *forwardPass) (ml.Tensor, error) {
	x := pixels
	if t.Stem != nil {
		x = t.Stem.Forward(ctx, x, fwd)
	}

	if w, h := x.Dim(0), x.Dim(1); w%fwd.patchSize != 0 || h%fwd.patchSize != 0 {
		return nil, fmt.Errorf("feature map %dx%d is not divisible by patch size %d", w, h, fwd.patchSize)
	}

	// Patch-Embedding, danach Tokens als (hidden, seq, batch)
	x = t.PatchEmbedding.Forward(ctx, x, fwd.patchSize, fwd.patchSize, 0, 0, 1, 1)
	seq, batch := x.Dim(0)*x.Dim(1), x.Dim(3)
	x = x.Reshape(ctx, seq, fwd.hiddenSize, batch).Permute(ctx, 1, 0, 2, 3).Contiguous(ctx)

	// Klassen-Token an Position 0 einfuegen
	if fwd.usesClassToken() {
		cls := t.ClassEmbedding.Reshape(ctx, fwd.hiddenSize, 1, 1).Repeat(ctx, 2, batch)
		x = cls.Concat(ctx, x, 1)
		seq++
	}

	if fwd.addPositionEmbedding {
		pe := t.PositionEmbedding
		if pe.Dim(0) != fwd.hiddenSize || pe.Dim(1) != seq {
			return nil, fmt.Errorf("position embedding shape %v does not match embedded sequence (%d, %d)", pe.Shape(), fwd.hiddenSize, seq)
		}
		x = x.Add(ctx, pe)
		x = fwd.drop.Forward(ctx, x, fwd.rng)
	}

	for i := range t.Layers {
		x = t.Layers[i].Forward(ctx, x, fwd)
	}
	x = t.PostNorm.Forward(ctx, x, fwd.eps)

	switch fwd.poolingType {
	case poolingToken:
		x = x.Slice(ctx, 1, 0, 1, 1).Reshape(ctx, fwd.hiddenSize, batch)
	case poolingGAP:
		x = x.Permute(ctx, 1, 0, 2, 3).Mean(ctx).Reshape(ctx, fwd.hiddenSize, batch)
	case poolingUnpooled, poolingTokenUnpooled:
		// volle Sequenz weiterreichen
	}

	if t.PreLogits != nil {
		x = t.PreLogits.Forward(ctx, x).Tanh(ctx)
	}
	if t.Head != nil {
		x = t.Head.Forward(ctx, x)
	}

	return x, nil
}

// Model ist das registrierte Hybrid-ViT Model
type Model struct {
	model.Base

	*Transformer `gguf:"v"`
}

// New erstellt ein neues Hybrid-ViT Model aus der Konfiguration
func New(c fs.Config) (model.Model, error) {
	return &Model{Transformer: newTransformer(c)}, nil
}

// Validate prueft Konfiguration und Vollstaendigkeit der Gewichte
func (m *Model) Validate() error {
	if !validPoolingType(m.poolingType) {
		return fmt.Errorf("invalid pooling type %q", m.poolingType)
	}
	if m.numHeads < 1 || m.hiddenSize%m.numHeads != 0 {
		return fmt.Errorf("embedding length %d is not divisible by %d attention heads", m.hiddenSize, m.numHeads)
	}
	if m.patchSize < 1 {
		return fmt.Errorf("invalid patch size %d", m.patchSize)
	}
	if m.imageSize%m.patchSize != 0 && m.Stem == nil {
		return fmt.Errorf("image size %d is not divisible by patch size %d", m.imageSize, m.patchSize)
	}
	if m.mlpDim < 1 {
		return fmt.Errorf("invalid feed forward length %d", m.mlpDim)
	}
	if m.dropout < 0 || m.dropout >= 1 {
		return fmt.Errorf("dropout rate %f out of range", m.dropout)
	}
	if m.attentionDropout < 0 || m.attentionDropout >= 1 {
		return fmt.Errorf("attention dropout rate %f out of range", m.attentionDropout)
	}
	if m.expandRatio <= 0 {
		return fmt.Errorf("invalid expand ratio %f", m.expandRatio)
	}
	if m.seReduction < 1 {
		return fmt.Errorf("invalid squeeze-excitation reduction %d", m.seReduction)
	}
	if m.gnGroups < 1 {
		return fmt.Errorf("invalid group norm group count %d", m.gnGroups)
	}
	if m.Stem != nil {
		if m.resnetWidthFactor < 1 {
			return fmt.Errorf("invalid resnet width factor %d", m.resnetWidthFactor)
		}
		if width := stemRootWidth * m.resnetWidthFactor; width%m.gnGroups != 0 {
			return fmt.Errorf("stem width %d is not divisible into %d groups", width, m.gnGroups)
		}
		if err := m.Stem.validate(); err != nil {
			return fmt.Errorf("stem: %w", err)
		}
	}

	if m.PatchEmbedding == nil {
		return errors.New("missing patch embedding tensor v.patch_embd")
	}
	if m.PostNorm == nil {
		return errors.New("missing encoder norm tensor v.post_norm")
	}
	if m.usesClassToken() && m.ClassEmbedding == nil {
		return fmt.Errorf("pooling type %q requires the class embedding tensor v.class_embd", m.poolingType)
	}
	if m.addPositionEmbedding && m.PositionEmbedding == nil {
		return errors.New("missing position embedding tensor v.position_embd.weight")
	}
	if m.representationSize > 0 && m.PreLogits == nil {
		return errors.New("missing representation tensor v.pre_logits")
	}
	if m.numClasses > 0 && m.Head == nil {
		return errors.New("missing classification tensor v.head")
	}

	for i := range m.Layers {
		if err := m.Layers[i].validate(); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}

	return nil
}

// Forward fuehrt einen Forward-Durchlauf fuer einen Bild-Batch aus.
// Im Eval-Modus ist die Ausgabe deterministisch, im Train-Modus werden
// alle Dropout-Masken aus dem Seed des Batches abgeleitet.
func (m *Model) Forward(ctx ml.Context, batch model.ImageBatch) (ml.Tensor, error) {
	// Konfigurationsfehler vor jeder Tensor-Berechnung melden
	if !validPoolingType(m.poolingType) {
		return nil, fmt.Errorf("invalid pooling type %q", m.poolingType)
	}

	fwd := &forwardPass{
		Options:  m.Options,
		train:    batch.Train,
		drop:     &nn.Dropout{Rate: m.dropout},
		attnDrop: &nn.Dropout{Rate: m.attentionDropout},
	}
	if batch.Train {
		fwd.rng = rand.New(rand.NewSource(batch.Seed))
	}

	return m.Transformer.Forward(ctx, batch.Pixels, fwd)
}

func init() {
	model.Register("hybridvit", New)
}
