// convert_vithybrid.go - Konverter fuer Hybrid-ViT-Checkpoints
// Haupttypen: vitHybridModel
package convert

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/hybridvit/hybridvit/fs/ggml"
	"github.com/hybridvit/hybridvit/huggingface"
)

// vitHybridModel - Parameter eines Hybrid-ViT-Checkpoints aus config.json
type vitHybridModel struct {
	ModelParameters

	NameOrPath                string            `json:"_name_or_path"`
	HiddenSize                uint32            `json:"hidden_size"`
	NumHiddenLayers           uint32            `json:"num_hidden_layers"`
	IntermediateSize          uint32            `json:"intermediate_size"`
	NumAttentionHeads         uint32            `json:"num_attention_heads"`
	LayerNormEps              float32           `json:"layer_norm_eps"`
	ImageSize                 uint32            `json:"image_size"`
	PatchSize                 uint32            `json:"patch_size"`
	NumChannels               uint32            `json:"num_channels"`
	HiddenDropoutProb         float32           `json:"hidden_dropout_prob"`
	AttentionProbsDropoutProb float32           `json:"attention_probs_dropout_prob"`
	Classifier                string            `json:"classifier"`
	RepresentationSize        uint32            `json:"representation_size"`
	HeadBiasInit              float32           `json:"head_bias_init"`
	ExpandRatio               float32           `json:"expand_ratio"`
	SEReduction               uint32            `json:"se_reduction"`
	AddPositionEmbedding      *bool             `json:"add_position_embedding"`
	ID2Label                  map[string]string `json:"id2label"`

	BackboneConfig *struct {
		Depths      []int32 `json:"depths"`
		WidthFactor uint32  `json:"width_factor"`
		NumGroups   uint32  `json:"num_groups"`
	} `json:"backbone_config"`

	preprocessor struct {
		ImageMean []float32 `json:"image_mean"`
		ImageStd  []float32 `json:"image_std"`
	}
}

var _ ModelConverter = (*vitHybridModel)(nil)

// parseMore - Validiert die Pooling-Strategie und liest Bildnormalisierung
// aus preprocessor_config.json. Fehlt sie, springen die Defaults aus der
// Registry bekannter Checkpoints ein (_name_or_path aus config.json)
func (m *vitHybridModel) parseMore(fsys fs.FS) error {
	switch cmp.Or(m.Classifier, "token") {
	case "token", "gap", "unpooled", "token_unpooled":
	default:
		return fmt.Errorf("unsupported classifier %q", m.Classifier)
	}

	bts, err := fs.ReadFile(fsys, "preprocessor_config.json")
	if err == nil {
		if err := json.Unmarshal(bts, &m.preprocessor); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if km, ok := huggingface.LookupKnownModel(m.NameOrPath); ok {
		if len(m.preprocessor.ImageMean) == 0 {
			m.preprocessor.ImageMean = km.DefaultImageMean
		}
		if len(m.preprocessor.ImageStd) == 0 {
			m.preprocessor.ImageStd = km.DefaultImageStd
		}
	}

	return nil
}

// KV - Bildet die Checkpoint-Parameter auf GGUF-Metadaten ab
func (m *vitHybridModel) KV() KV {
	kv := m.ModelParameters.KV()
	kv["general.architecture"] = "hybridvit"
	kv["vision.block_count"] = cmp.Or(m.NumHiddenLayers, 12)
	kv["vision.embedding_length"] = cmp.Or(m.HiddenSize, 768)
	kv["vision.feed_forward_length"] = cmp.Or(m.IntermediateSize, 3072)
	kv["vision.attention.head_count"] = cmp.Or(m.NumAttentionHeads, 12)
	kv["vision.attention.layer_norm_epsilon"] = cmp.Or(m.LayerNormEps, 1e-6)
	kv["vision.patch_size"] = cmp.Or(m.PatchSize, 16)
	kv["vision.image_size"] = cmp.Or(m.ImageSize, 224)
	kv["vision.num_channels"] = cmp.Or(m.NumChannels, 3)
	kv["vision.dropout"] = m.HiddenDropoutProb
	kv["vision.attention.dropout"] = m.AttentionProbsDropoutProb
	kv["vision.pooling_type"] = cmp.Or(m.Classifier, "token")
	kv["vision.representation_length"] = m.RepresentationSize
	kv["vision.class_count"] = uint32(len(m.ID2Label))
	kv["vision.head.bias_init"] = m.HeadBiasInit
	kv["vision.expand_ratio"] = cmp.Or(m.ExpandRatio, 1)
	kv["vision.se_reduction"] = cmp.Or(m.SEReduction, 4)

	posEmbd := true
	if m.AddPositionEmbedding != nil {
		posEmbd = *m.AddPositionEmbedding
	}
	kv["vision.position_embedding"] = posEmbd

	if m.BackboneConfig != nil && len(m.BackboneConfig.Depths) > 0 {
		kv["vision.resnet.layers"] = m.BackboneConfig.Depths
		kv["vision.resnet.width_factor"] = cmp.Or(m.BackboneConfig.WidthFactor, 1)
		kv["vision.group_norm.groups"] = cmp.Or(m.BackboneConfig.NumGroups, 32)
	}

	if len(m.preprocessor.ImageMean) > 0 {
		kv["vision.image_mean"] = m.preprocessor.ImageMean
	}
	if len(m.preprocessor.ImageStd) > 0 {
		kv["vision.image_std"] = m.preprocessor.ImageStd
	}

	return kv
}

// Tensors - Bildet die Checkpoint-Tensoren auf GGUF-Tensoren ab.
// Fusionierte QKV-Gewichte werden aufgeteilt, fuehrende 1er-Dimensionen
// der Embeddings entfernt und BatchNorm-Zaehler verworfen. Fehlt der
// Klassifikationskopf bei gesetzter Klassenzahl, wird er mit Null-Kernel
// und konstantem Bias materialisiert.
func (m *vitHybridModel) Tensors(ts []Tensor) []*ggml.Tensor {
	out := make([]*ggml.Tensor, 0, len(ts))

	var hasHead bool
	for _, t := range ts {
		name := t.Name()
		switch {
		case strings.HasSuffix(name, ".num_batches_tracked"):
			continue
		case strings.Contains(name, "attn_qkv."):
			out = append(out, splitDim(t, 0,
				split{strings.NewReplacer("attn_qkv", "attn_q")},
				split{strings.NewReplacer("attn_qkv", "attn_k")},
				split{strings.NewReplacer("attn_qkv", "attn_v")},
			)...)
		case name == "v.class_embd" || name == "v.position_embd.weight":
			shape := t.Shape()
			for len(shape) > 1 && shape[0] == 1 {
				shape = shape[1:]
			}

			out = append(out, &ggml.Tensor{
				Name:     name,
				Kind:     t.Kind(),
				Shape:    slices.Clone(shape),
				WriterTo: t,
			})
		default:
			if strings.HasPrefix(name, "v.head.") {
				hasHead = true
			}

			out = append(out, &ggml.Tensor{
				Name:     name,
				Kind:     t.Kind(),
				Shape:    slices.Clone(t.Shape()),
				WriterTo: t,
			})
		}
	}

	if classes := len(m.ID2Label); classes > 0 && !hasHead {
		out = append(out, m.headTensors(classes)...)
	}

	return out
}

// headTensors - Materialisiert einen untrainierten Klassifikationskopf:
// Null-Kernel plus konstant initialisierter Bias, damit das Modell mit
// einer gleichfoermigen Vorhersage startet
func (m *vitHybridModel) headTensors(classes int) []*ggml.Tensor {
	width := cmp.Or(m.RepresentationSize, cmp.Or(m.HiddenSize, 768))

	return []*ggml.Tensor{
		{
			Name:     "v.head.weight",
			Kind:     tensorKindF32,
			Shape:    []uint64{uint64(classes), uint64(width)},
			WriterTo: constTensor{n: classes * int(width)},
		},
		{
			Name:     "v.head.bias",
			Kind:     tensorKindF32,
			Shape:    []uint64{uint64(classes)},
			WriterTo: constTensor{value: m.HeadBiasInit, n: classes},
		},
	}
}

// Replacements - Umbenennungstabelle von Checkpoint- zu GGUF-Namen.
// Deckt die Praefix-Variante (ForImageClassification) und die nackte
// Variante (Basismodell) ab. layernorm_before/_after muessen vor dem
// nackten layernorm stehen, conv_pwl vor conv_pw.
func (m *vitHybridModel) Replacements() []string {
	return []string{
		"vit.", "",
		"embeddings.patch_embeddings.backbone.bit.", "v.stem.",
		"embeddings.patch_embeddings.projection", "v.patch_embd",
		"embeddings.cls_token", "v.class_embd",
		"embeddings.position_embeddings", "v.position_embd.weight",
		"embedder.convolution", "conv_root",
		"embedder.norm", "gn_root",
		"encoder.stages.", "stage.",
		".layers.", ".unit.",
		"downsample.conv", "conv_proj",
		"downsample.norm", "gn_proj",
		"norm1", "gn1",
		"norm2", "gn2",
		"norm3", "gn3",
		"encoder.layer.", "v.blk.",
		"attention.attention.qkv", "attn_qkv",
		"attention.attention.query", "attn_q",
		"attention.attention.key", "attn_k",
		"attention.attention.value", "attn_v",
		"attention.output.dense", "attn_output",
		"layernorm_before", "attn_norm",
		"layernorm_after", "ffn_norm",
		"intermediate.dense", "ffn_up",
		"output.dense", "ffn_down",
		"conv_pwl", "project",
		"conv_pw", "expand.conv",
		"conv_dw", "dw.conv",
		"bn1", "expand.bn",
		"bn2", "dw.bn",
		"bn3", "bn",
		"se.conv_reduce", "se.reduce",
		"se.conv_expand", "se.expand",
		"layernorm", "v.post_norm",
		"pooler.dense", "v.pre_logits",
		"classifier", "v.head",
	}
}
