// convert_test.go - Tests fuer die Checkpoint-Konvertierung
package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/hybridvit/hybridvit/fs/ggml"
)

// fixtureTensor - Ein Tensor fuer die Safetensors-Testdatei
type fixtureTensor struct {
	dtype string
	shape []uint64
	f32s  []float32
	i64s  []int64
}

// f32Tensor - Abkuerzung fuer einen F32-Tensor mit fortlaufenden Werten
func f32Tensor(shape ...uint64) fixtureTensor {
	n := uint64(1)
	for _, d := range shape {
		n *= d
	}

	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	return fixtureTensor{dtype: "F32", shape: shape, f32s: data}
}

// encodeSafetensors - Baut eine Safetensors-Datei im Speicher auf
func encodeSafetensors(t *testing.T, tensors map[string]fixtureTensor) []byte {
	t.Helper()

	headers := make(map[string]safetensorMetadata, len(tensors))
	var data bytes.Buffer
	for _, name := range slices.Sorted(maps.Keys(tensors)) {
		ft := tensors[name]
		start := uint64(data.Len())

		switch ft.dtype {
		case "F32":
			require.NoError(t, binary.Write(&data, binary.LittleEndian, ft.f32s))
		case "F16":
			for _, f32 := range ft.f32s {
				require.NoError(t, binary.Write(&data, binary.LittleEndian, float16.Fromfloat32(f32).Bits()))
			}
		case "I64":
			require.NoError(t, binary.Write(&data, binary.LittleEndian, ft.i64s))
		default:
			t.Fatalf("unbekannter dtype %q", ft.dtype)
		}

		headers[name] = safetensorMetadata{
			Type:    ft.dtype,
			Shape:   ft.shape,
			Offsets: []uint64{start, uint64(data.Len())},
		}
	}

	hdr, err := json.Marshal(headers)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(hdr))))
	buf.Write(hdr)
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// convertToFile - Laeuft ConvertModel und gibt die dekodierte GGUF-Datei zurueck
func convertToFile(t *testing.T, fsys fstest.MapFS) (*os.File, *ggml.GGML) {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "model.gguf"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	require.NoError(t, ConvertModel(fsys, f))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	g, err := ggml.Decode(f, -1)
	require.NoError(t, err)
	return f, g
}

// tensorFloats - Liest die Daten eines Tensors aus der GGUF-Datei zurueck
func tensorFloats(t *testing.T, r io.ReaderAt, g *ggml.GGML, name string) []float32 {
	t.Helper()

	for _, tt := range g.Tensors().Items() {
		if tt.Name != name {
			continue
		}

		buf := make([]byte, tt.Size())
		_, err := r.ReadAt(buf, int64(g.Tensors().Offset+tt.Offset))
		require.NoError(t, err)

		f32s := make([]float32, tt.Elements())
		switch ggml.TensorType(tt.Kind) {
		case ggml.TensorTypeF32:
			require.NoError(t, binary.Read(bytes.NewReader(buf), binary.LittleEndian, f32s))
		case ggml.TensorTypeF16:
			u16s := make([]uint16, tt.Elements())
			require.NoError(t, binary.Read(bytes.NewReader(buf), binary.LittleEndian, u16s))
			for i, u16 := range u16s {
				f32s[i] = float16.Frombits(u16).Float32()
			}
		default:
			t.Fatalf("tensor %s: unerwarteter Typ %d", name, tt.Kind)
		}
		return f32s
	}

	t.Fatalf("tensor %s nicht gefunden", name)
	return nil
}

// tensorNames - Alle Tensor-Namen der dekodierten Datei
func tensorNames(g *ggml.GGML) []string {
	var names []string
	for _, tt := range g.Tensors().Items() {
		names = append(names, tt.Name)
	}
	return names
}

// tensorShape - Shape eines Tensors in ne-Reihenfolge
func tensorShape(t *testing.T, g *ggml.GGML, name string) []uint64 {
	t.Helper()
	for _, tt := range g.Tensors().Items() {
		if tt.Name == name {
			return tt.Shape
		}
	}
	t.Fatalf("tensor %s nicht gefunden", name)
	return nil
}

// hybridCheckpoint - Vollstaendiges Test-Checkpoint im HF-Stil.
// hidden=8, heads=2, mlp=16, patch=4, image=8, fusioniertes QKV,
// kein Klassifikationskopf in den Gewichten.
func hybridCheckpoint(t *testing.T) fstest.MapFS {
	t.Helper()

	ts := map[string]fixtureTensor{
		"vit.embeddings.cls_token":                          f32Tensor(1, 1, 8),
		"vit.embeddings.position_embeddings":                f32Tensor(1, 5, 8),
		"vit.embeddings.patch_embeddings.projection.weight": f32Tensor(8, 3, 4, 4),
		"vit.embeddings.patch_embeddings.projection.bias":   f32Tensor(8),

		"vit.encoder.layer.0.mbconv.0.conv_pw.weight":        f32Tensor(8, 8, 1, 1),
		"vit.encoder.layer.0.mbconv.0.bn1.weight":            f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn1.bias":              f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn1.running_mean":      f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn1.running_var":       f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.conv_dw.weight":        f32Tensor(8, 1, 3, 3),
		"vit.encoder.layer.0.mbconv.0.bn2.weight":            f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn2.bias":              f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn2.running_mean":      f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn2.running_var":       f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.se.conv_reduce.weight": f32Tensor(2, 8, 1, 1),
		"vit.encoder.layer.0.mbconv.0.se.conv_reduce.bias":   f32Tensor(2),
		"vit.encoder.layer.0.mbconv.0.se.conv_expand.weight": f32Tensor(8, 2, 1, 1),
		"vit.encoder.layer.0.mbconv.0.se.conv_expand.bias":   f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.conv_pwl.weight":       f32Tensor(8, 8, 1, 1),
		"vit.encoder.layer.0.mbconv.0.bn3.weight":            f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn3.bias":              f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn3.running_mean":      f32Tensor(8),
		"vit.encoder.layer.0.mbconv.0.bn3.running_var":       f32Tensor(8),

		"vit.encoder.layer.0.attention.attention.qkv.weight": f32Tensor(24, 8),
		"vit.encoder.layer.0.attention.attention.qkv.bias":   f32Tensor(24),
		"vit.encoder.layer.0.attention.output.dense.weight":  f32Tensor(8, 8),
		"vit.encoder.layer.0.attention.output.dense.bias":    f32Tensor(8),
		"vit.encoder.layer.0.layernorm_before.weight":        f32Tensor(8),
		"vit.encoder.layer.0.layernorm_before.bias":          f32Tensor(8),
		"vit.encoder.layer.0.layernorm_after.weight":         f32Tensor(8),
		"vit.encoder.layer.0.layernorm_after.bias":           f32Tensor(8),
		"vit.encoder.layer.0.intermediate.dense.weight":      f32Tensor(16, 8),
		"vit.encoder.layer.0.intermediate.dense.bias":        f32Tensor(16),
		"vit.encoder.layer.0.output.dense.weight":            f32Tensor(8, 16),
		"vit.encoder.layer.0.output.dense.bias":              f32Tensor(8),

		"vit.layernorm.weight": f32Tensor(8),
		"vit.layernorm.bias":   f32Tensor(8),
	}
	ts["vit.encoder.layer.0.mbconv.0.bn1.num_batches_tracked"] = fixtureTensor{
		dtype: "I64", shape: []uint64{1}, i64s: []int64{42},
	}

	config := `{
		"architectures": ["ViTHybridForImageClassification"],
		"model_type": "vit-hybrid",
		"hidden_size": 8,
		"num_hidden_layers": 1,
		"intermediate_size": 16,
		"num_attention_heads": 2,
		"layer_norm_eps": 1e-6,
		"image_size": 8,
		"patch_size": 4,
		"num_channels": 3,
		"hidden_dropout_prob": 0.1,
		"attention_probs_dropout_prob": 0.1,
		"classifier": "token",
		"head_bias_init": -1.5,
		"id2label": {"0": "katze", "1": "hund"}
	}`
	preprocessor := `{"image_mean": [0.5, 0.5, 0.5], "image_std": [0.5, 0.5, 0.5]}`

	return fstest.MapFS{
		"config.json":              &fstest.MapFile{Data: []byte(config)},
		"preprocessor_config.json": &fstest.MapFile{Data: []byte(preprocessor)},
		"model.safetensors":        &fstest.MapFile{Data: encodeSafetensors(t, ts)},
	}
}

func TestConvertViTHybrid(t *testing.T) {
	f, g := convertToFile(t, hybridCheckpoint(t))

	kv := g.KV()
	assert.Equal(t, "hybridvit", kv.Architecture())
	assert.Equal(t, uint32(1), kv.Uint("vision.block_count"))
	assert.Equal(t, uint32(8), kv.Uint("vision.embedding_length"))
	assert.Equal(t, uint32(16), kv.Uint("vision.feed_forward_length"))
	assert.Equal(t, uint32(2), kv.Uint("vision.attention.head_count"))
	assert.Equal(t, uint32(4), kv.Uint("vision.patch_size"))
	assert.Equal(t, uint32(8), kv.Uint("vision.image_size"))
	assert.Equal(t, "token", kv.String("vision.pooling_type"))
	assert.Equal(t, uint32(2), kv.Uint("vision.class_count"))
	assert.Equal(t, float32(-1.5), kv.Float("vision.head.bias_init"))
	assert.Equal(t, float32(1), kv.Float("vision.expand_ratio"))
	assert.Equal(t, uint32(4), kv.Uint("vision.se_reduction"))
	assert.True(t, kv.Bool("vision.position_embedding"))
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, kv.Floats("vision.image_mean"))
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, kv.Floats("vision.image_std"))

	names := tensorNames(g)

	// Fusioniertes QKV muss aufgeteilt sein
	assert.Contains(t, names, "v.blk.0.attn_q.weight")
	assert.Contains(t, names, "v.blk.0.attn_k.weight")
	assert.Contains(t, names, "v.blk.0.attn_v.weight")
	assert.Contains(t, names, "v.blk.0.attn_q.bias")
	for _, name := range names {
		assert.NotContains(t, name, "attn_qkv")
		assert.NotContains(t, name, "num_batches_tracked")
	}

	// MBConv-Namen nach timm-Konvention umgeschrieben
	assert.Contains(t, names, "v.blk.0.mbconv.0.expand.conv.weight")
	assert.Contains(t, names, "v.blk.0.mbconv.0.expand.bn.running_mean")
	assert.Contains(t, names, "v.blk.0.mbconv.0.dw.conv.weight")
	assert.Contains(t, names, "v.blk.0.mbconv.0.dw.bn.running_var")
	assert.Contains(t, names, "v.blk.0.mbconv.0.se.reduce.weight")
	assert.Contains(t, names, "v.blk.0.mbconv.0.se.expand.bias")
	assert.Contains(t, names, "v.blk.0.mbconv.0.project.weight")
	assert.Contains(t, names, "v.blk.0.mbconv.0.bn.weight")
	assert.Contains(t, names, "v.post_norm.weight")

	// Shapes in ne-Reihenfolge (innerste Dimension zuerst)
	assert.Equal(t, []uint64{8}, tensorShape(t, g, "v.class_embd"))
	assert.Equal(t, []uint64{8, 5}, tensorShape(t, g, "v.position_embd.weight"))
	assert.Equal(t, []uint64{4, 4, 3, 8}, tensorShape(t, g, "v.patch_embd.weight"))
	assert.Equal(t, []uint64{8, 8}, tensorShape(t, g, "v.blk.0.attn_q.weight"))
	assert.Equal(t, []uint64{8}, tensorShape(t, g, "v.blk.0.attn_v.bias"))
	assert.Equal(t, []uint64{3, 3, 1, 8}, tensorShape(t, g, "v.blk.0.mbconv.0.dw.conv.weight"))
	assert.Equal(t, []uint64{1, 1, 8, 2}, tensorShape(t, g, "v.blk.0.mbconv.0.se.reduce.weight"))

	// QKV-Aufteilung: Drittel entlang der Ausgabedimension
	qData := tensorFloats(t, f, g, "v.blk.0.attn_q.weight")
	kData := tensorFloats(t, f, g, "v.blk.0.attn_k.weight")
	vData := tensorFloats(t, f, g, "v.blk.0.attn_v.weight")
	require.Len(t, qData, 64)
	assert.Equal(t, float32(0), qData[0])
	assert.Equal(t, float32(63), qData[63])
	assert.Equal(t, float32(64), kData[0])
	assert.Equal(t, float32(128), vData[0])
	assert.Equal(t, float32(191), vData[63])

	qBias := tensorFloats(t, f, g, "v.blk.0.attn_q.bias")
	vBias := tensorFloats(t, f, g, "v.blk.0.attn_v.bias")
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, qBias)
	assert.Equal(t, []float32{16, 17, 18, 19, 20, 21, 22, 23}, vBias)

	// Materialisierter Kopf: Null-Kernel, konstanter Bias
	assert.Equal(t, []uint64{8, 2}, tensorShape(t, g, "v.head.weight"))
	headWeight := tensorFloats(t, f, g, "v.head.weight")
	for _, v := range headWeight {
		assert.Equal(t, float32(0), v)
	}
	assert.Equal(t, []float32{-1.5, -1.5}, tensorFloats(t, f, g, "v.head.bias"))

	// Embeddings ueberleben die Umformung unveraendert
	clsData := tensorFloats(t, f, g, "v.class_embd")
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, clsData)
}

func TestConvertViTHybridHeadless(t *testing.T) {
	// Basismodell ohne Praefix und ohne Klassifikationskopf,
	// dafuer mit Pooler als Repraesentationsschicht
	ts := map[string]fixtureTensor{
		"embeddings.cls_token":                          f32Tensor(1, 1, 8),
		"embeddings.position_embeddings":                f32Tensor(1, 5, 8),
		"embeddings.patch_embeddings.projection.weight": f32Tensor(8, 3, 4, 4),
		"embeddings.patch_embeddings.projection.bias":   f32Tensor(8),

		"encoder.layer.0.attention.attention.query.weight": f32Tensor(8, 8),
		"encoder.layer.0.attention.attention.query.bias":   f32Tensor(8),
		"encoder.layer.0.attention.attention.key.weight":   f32Tensor(8, 8),
		"encoder.layer.0.attention.attention.key.bias":     f32Tensor(8),
		"encoder.layer.0.attention.attention.value.weight": f32Tensor(8, 8),
		"encoder.layer.0.attention.attention.value.bias":   f32Tensor(8),
		"encoder.layer.0.attention.output.dense.weight":    f32Tensor(8, 8),
		"encoder.layer.0.attention.output.dense.bias":      f32Tensor(8),
		"encoder.layer.0.layernorm_before.weight":          f32Tensor(8),
		"encoder.layer.0.layernorm_before.bias":            f32Tensor(8),
		"encoder.layer.0.layernorm_after.weight":           f32Tensor(8),
		"encoder.layer.0.layernorm_after.bias":             f32Tensor(8),
		"encoder.layer.0.intermediate.dense.weight":        f32Tensor(16, 8),
		"encoder.layer.0.intermediate.dense.bias":          f32Tensor(16),
		"encoder.layer.0.output.dense.weight":              f32Tensor(8, 16),
		"encoder.layer.0.output.dense.bias":                f32Tensor(8),

		"layernorm.weight":    f32Tensor(8),
		"layernorm.bias":      f32Tensor(8),
		"pooler.dense.weight": f32Tensor(8, 8),
		"pooler.dense.bias":   f32Tensor(8),
	}

	config := `{
		"architectures": ["ViTHybridModel"],
		"model_type": "vit-hybrid",
		"hidden_size": 8,
		"num_hidden_layers": 1,
		"intermediate_size": 16,
		"num_attention_heads": 2,
		"image_size": 8,
		"patch_size": 4,
		"representation_size": 8
	}`

	fsys := fstest.MapFS{
		"config.json":       &fstest.MapFile{Data: []byte(config)},
		"model.safetensors": &fstest.MapFile{Data: encodeSafetensors(t, ts)},
	}

	_, g := convertToFile(t, fsys)

	kv := g.KV()
	assert.Equal(t, "hybridvit", kv.Architecture())
	assert.Equal(t, uint32(0), kv.Uint("vision.class_count"))
	assert.Equal(t, uint32(8), kv.Uint("vision.representation_length"))

	names := tensorNames(g)
	assert.Contains(t, names, "v.pre_logits.weight")
	assert.Contains(t, names, "v.pre_logits.bias")
	assert.Contains(t, names, "v.blk.0.attn_q.weight")
	assert.Contains(t, names, "v.blk.0.ffn_up.weight")
	assert.Contains(t, names, "v.blk.0.ffn_down.weight")
	assert.Contains(t, names, "v.post_norm.weight")

	// Ohne Klassenzahl wird kein Kopf materialisiert
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, "v.head."), "unerwarteter Kopf-Tensor %s", name)
	}
}

func TestReplacements(t *testing.T) {
	r := strings.NewReplacer((&vitHybridModel{}).Replacements()...)

	cases := []struct {
		in   string
		want string
	}{
		// Embeddings, beide Namensvarianten
		{"vit.embeddings.cls_token", "v.class_embd"},
		{"embeddings.cls_token", "v.class_embd"},
		{"vit.embeddings.position_embeddings", "v.position_embd.weight"},
		{"vit.embeddings.patch_embeddings.projection.weight", "v.patch_embd.weight"},
		{"embeddings.patch_embeddings.projection.bias", "v.patch_embd.bias"},

		// ResNet-Stamm
		{"vit.embeddings.patch_embeddings.backbone.bit.embedder.convolution.weight", "v.stem.conv_root.weight"},
		{"vit.embeddings.patch_embeddings.backbone.bit.embedder.norm.weight", "v.stem.gn_root.weight"},
		{"vit.embeddings.patch_embeddings.backbone.bit.encoder.stages.1.layers.2.conv1.weight", "v.stem.stage.1.unit.2.conv1.weight"},
		{"embeddings.patch_embeddings.backbone.bit.encoder.stages.0.layers.0.norm3.bias", "v.stem.stage.0.unit.0.gn3.bias"},
		{"vit.embeddings.patch_embeddings.backbone.bit.encoder.stages.2.layers.0.downsample.conv.weight", "v.stem.stage.2.unit.0.conv_proj.weight"},
		{"vit.embeddings.patch_embeddings.backbone.bit.encoder.stages.2.layers.0.downsample.norm.bias", "v.stem.stage.2.unit.0.gn_proj.bias"},

		// Encoder-Bloecke
		{"vit.encoder.layer.7.attention.attention.query.weight", "v.blk.7.attn_q.weight"},
		{"encoder.layer.7.attention.attention.key.bias", "v.blk.7.attn_k.bias"},
		{"vit.encoder.layer.7.attention.attention.value.weight", "v.blk.7.attn_v.weight"},
		{"vit.encoder.layer.7.attention.attention.qkv.weight", "v.blk.7.attn_qkv.weight"},
		{"vit.encoder.layer.7.attention.output.dense.weight", "v.blk.7.attn_output.weight"},
		{"vit.encoder.layer.7.layernorm_before.weight", "v.blk.7.attn_norm.weight"},
		{"vit.encoder.layer.7.layernorm_after.bias", "v.blk.7.ffn_norm.bias"},
		{"vit.encoder.layer.7.intermediate.dense.weight", "v.blk.7.ffn_up.weight"},
		{"vit.encoder.layer.7.output.dense.weight", "v.blk.7.ffn_down.weight"},

		// MBConv nach timm-Konvention
		{"vit.encoder.layer.3.mbconv.1.conv_pw.weight", "v.blk.3.mbconv.1.expand.conv.weight"},
		{"vit.encoder.layer.3.mbconv.1.bn1.running_mean", "v.blk.3.mbconv.1.expand.bn.running_mean"},
		{"vit.encoder.layer.3.mbconv.1.conv_dw.weight", "v.blk.3.mbconv.1.dw.conv.weight"},
		{"vit.encoder.layer.3.mbconv.1.bn2.weight", "v.blk.3.mbconv.1.dw.bn.weight"},
		{"vit.encoder.layer.3.mbconv.1.se.conv_reduce.bias", "v.blk.3.mbconv.1.se.reduce.bias"},
		{"vit.encoder.layer.3.mbconv.1.se.conv_expand.weight", "v.blk.3.mbconv.1.se.expand.weight"},
		{"vit.encoder.layer.3.mbconv.1.conv_pwl.weight", "v.blk.3.mbconv.1.project.weight"},
		{"vit.encoder.layer.3.mbconv.1.bn3.running_var", "v.blk.3.mbconv.1.bn.running_var"},

		// Kopf und Abschluss
		{"vit.layernorm.weight", "v.post_norm.weight"},
		{"layernorm.bias", "v.post_norm.bias"},
		{"vit.pooler.dense.weight", "v.pre_logits.weight"},
		{"pooler.dense.bias", "v.pre_logits.bias"},
		{"classifier.weight", "v.head.weight"},
		{"classifier.bias", "v.head.bias"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Replace(tc.in), "Eingabe %s", tc.in)
	}
}

func TestSplitDim(t *testing.T) {
	ts := map[string]fixtureTensor{
		"v.blk.0.attn_qkv.weight": f32Tensor(6, 2),
		"v.blk.0.attn_qkv.bias":   f32Tensor(6),
	}
	fsys := fstest.MapFS{
		"model.safetensors": &fstest.MapFile{Data: encodeSafetensors(t, ts)},
	}

	parsed, err := parseSafetensors(fsys, strings.NewReplacer(), "model.safetensors")
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	byName := make(map[string]Tensor, len(parsed))
	for _, tt := range parsed {
		byName[tt.Name()] = tt
	}

	parts := splitDim(byName["v.blk.0.attn_qkv.weight"], 0,
		split{strings.NewReplacer("attn_qkv", "attn_q")},
		split{strings.NewReplacer("attn_qkv", "attn_k")},
		split{strings.NewReplacer("attn_qkv", "attn_v")},
	)
	require.Len(t, parts, 3)

	want := [][]float32{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
		{8, 9, 10, 11},
	}
	for i, part := range parts {
		assert.Equal(t, []uint64{2, 2}, part.Shape)

		var buf bytes.Buffer
		_, err := part.WriteTo(&buf)
		require.NoError(t, err)

		// Rang 2 wird als F16 geschrieben
		u16s := make([]uint16, 4)
		require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, u16s))
		got := make([]float32, 4)
		for j, u16 := range u16s {
			got[j] = float16.Frombits(u16).Float32()
		}
		assert.Equal(t, want[i], got)
	}
	assert.Equal(t, "v.blk.0.attn_q.weight", parts[0].Name)
	assert.Equal(t, "v.blk.0.attn_k.weight", parts[1].Name)
	assert.Equal(t, "v.blk.0.attn_v.weight", parts[2].Name)

	// Bias bleibt F32
	biasParts := splitDim(byName["v.blk.0.attn_qkv.bias"], 0,
		split{strings.NewReplacer("attn_qkv", "attn_q")},
		split{strings.NewReplacer("attn_qkv", "attn_k")},
		split{strings.NewReplacer("attn_qkv", "attn_v")},
	)
	require.Len(t, biasParts, 3)

	var buf bytes.Buffer
	_, err = biasParts[1].WriteTo(&buf)
	require.NoError(t, err)
	got := make([]float32, 2)
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, got))
	assert.Equal(t, []float32{2, 3}, got)
}

func TestHeadMaterialization(t *testing.T) {
	m := &vitHybridModel{
		HiddenSize:         8,
		RepresentationSize: 6,
		HeadBiasInit:       -6.9,
		ID2Label:           map[string]string{"0": "a", "1": "b", "2": "c"},
	}

	out := m.Tensors(nil)
	require.Len(t, out, 2)

	// Kernel haengt an der Repraesentationsbreite, Shapes in Torch-Reihenfolge
	assert.Equal(t, "v.head.weight", out[0].Name)
	assert.Equal(t, []uint64{3, 6}, out[0].Shape)
	assert.Equal(t, uint32(ggml.TensorTypeF32), out[0].Kind)

	var buf bytes.Buffer
	_, err := out[0].WriteTo(&buf)
	require.NoError(t, err)
	kernel := make([]float32, 18)
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, kernel))
	for _, v := range kernel {
		assert.Equal(t, float32(0), v)
	}

	assert.Equal(t, "v.head.bias", out[1].Name)
	assert.Equal(t, []uint64{3}, out[1].Shape)

	buf.Reset()
	_, err = out[1].WriteTo(&buf)
	require.NoError(t, err)
	bias := make([]float32, 3)
	require.NoError(t, binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, bias))
	assert.Equal(t, []float32{-6.9, -6.9, -6.9}, bias)
}

func TestViTHybridKVDefaults(t *testing.T) {
	kv := (&vitHybridModel{}).KV()

	assert.Equal(t, "hybridvit", kv["general.architecture"])
	assert.Equal(t, uint32(12), kv["vision.block_count"])
	assert.Equal(t, uint32(768), kv["vision.embedding_length"])
	assert.Equal(t, uint32(3072), kv["vision.feed_forward_length"])
	assert.Equal(t, uint32(12), kv["vision.attention.head_count"])
	assert.Equal(t, float32(1e-6), kv["vision.attention.layer_norm_epsilon"])
	assert.Equal(t, uint32(16), kv["vision.patch_size"])
	assert.Equal(t, uint32(224), kv["vision.image_size"])
	assert.Equal(t, uint32(3), kv["vision.num_channels"])
	assert.Equal(t, "token", kv["vision.pooling_type"])
	assert.Equal(t, uint32(0), kv["vision.class_count"])
	assert.Equal(t, float32(1), kv["vision.expand_ratio"])
	assert.Equal(t, uint32(4), kv["vision.se_reduction"])
	assert.Equal(t, true, kv["vision.position_embedding"])

	// Ohne Backbone keine ResNet-Schluessel
	assert.NotContains(t, kv, "vision.resnet.layers")
	assert.NotContains(t, kv, "vision.resnet.width_factor")
}

func TestViTHybridKVBackbone(t *testing.T) {
	data := `{
		"architectures": ["ViTHybridForImageClassification"],
		"hidden_size": 768,
		"classifier": "gap",
		"backbone_config": {"depths": [3, 4, 9], "width_factor": 1, "num_groups": 32}
	}`

	var m vitHybridModel
	require.NoError(t, json.Unmarshal([]byte(data), &m))

	kv := m.KV()
	assert.Equal(t, []int32{3, 4, 9}, kv["vision.resnet.layers"])
	assert.Equal(t, uint32(1), kv["vision.resnet.width_factor"])
	assert.Equal(t, uint32(32), kv["vision.group_norm.groups"])
	assert.Equal(t, "gap", kv["vision.pooling_type"])
}

func TestViTHybridKnownModelNormalization(t *testing.T) {
	data := `{
		"architectures": ["ViTHybridForImageClassification"],
		"_name_or_path": "google/vit-hybrid-base-bit-384",
		"hidden_size": 768
	}`

	// Ohne preprocessor_config.json liefern bekannte Checkpoints die
	// Normalisierungs-Defaults ueber _name_or_path
	var m vitHybridModel
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	require.NoError(t, m.parseMore(fstest.MapFS{}))

	kv := m.KV()
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, kv["vision.image_mean"])
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, kv["vision.image_std"])

	// Eine vorhandene preprocessor_config.json hat Vorrang
	var m2 vitHybridModel
	require.NoError(t, json.Unmarshal([]byte(data), &m2))
	require.NoError(t, m2.parseMore(fstest.MapFS{
		"preprocessor_config.json": &fstest.MapFile{
			Data: []byte(`{"image_mean": [0.4, 0.4, 0.4], "image_std": [0.2, 0.2, 0.2]}`),
		},
	}))

	kv = m2.KV()
	assert.Equal(t, []float32{0.4, 0.4, 0.4}, kv["vision.image_mean"])
	assert.Equal(t, []float32{0.2, 0.2, 0.2}, kv["vision.image_std"])

	// Unbekannte Checkpoints bleiben ohne Normalisierungs-Metadaten
	var m3 vitHybridModel
	require.NoError(t, json.Unmarshal([]byte(`{"architectures": ["ViTHybridModel"]}`), &m3))
	require.NoError(t, m3.parseMore(fstest.MapFS{}))
	assert.NotContains(t, m3.KV(), "vision.image_mean")
}

func TestLoadModelMetadataErrors(t *testing.T) {
	t.Run("fehlende config.json", func(t *testing.T) {
		_, err := LoadModelMetadata(fstest.MapFS{})
		assert.Error(t, err)
	})

	t.Run("unbekannte Architektur", func(t *testing.T) {
		fsys := fstest.MapFS{
			"config.json": &fstest.MapFile{Data: []byte(`{"architectures": ["BertModel"]}`)},
		}
		_, err := LoadModelMetadata(fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported architecture "BertModel"`)
	})

	t.Run("ungueltige Pooling-Strategie", func(t *testing.T) {
		fsys := fstest.MapFS{
			"config.json": &fstest.MapFile{Data: []byte(`{"architectures": ["ViTHybridModel"], "classifier": "max"}`)},
		}
		_, err := LoadModelMetadata(fsys)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported classifier "max"`)
	})
}

func TestConvertModelUnknownTensorFormat(t *testing.T) {
	fsys := fstest.MapFS{
		"config.json": &fstest.MapFile{Data: []byte(`{"architectures": ["ViTHybridModel"]}`)},
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "model.gguf"))
	require.NoError(t, err)
	defer f.Close()

	err = ConvertModel(fsys, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tensor format")
}
