// MODUL: encoder
// ZWECK: Vision Encoder Fassade ueber dem nativen Backend
// INPUT: Modell-Pfad (GGUF), Bild-Daten (JPEG/PNG/GIF/WebP), Options
// OUTPUT: Float32 Embeddings, ModelInfo
// NEBENEFFEKTE: Laedt Modell-Gewichte in den Speicher
// ABHAENGIGKEITEN: model, ml, envconfig, golang.org/x/sync
// HINWEISE: Close() gibt das Backend frei, danach liefern Encode-Aufrufe Fehler

package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hybridvit/hybridvit/envconfig"
	"github.com/hybridvit/hybridvit/fs"
	"github.com/hybridvit/hybridvit/ml"
	"github.com/hybridvit/hybridvit/model"

	_ "github.com/hybridvit/hybridvit/model/models"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	ErrModelNotFound      = errors.New("vision: model file not found")
	ErrEncoderClosed      = errors.New("vision: encoder already closed")
	ErrPoolingUnsupported = errors.New("vision: pooling override not supported by model")
)

// ============================================================================
// VisionEncoder Interface
// ============================================================================

// VisionEncoder ist das Interface fuer Bild-zu-Embedding Encoder.
type VisionEncoder interface {
	Encode(imageData []byte) ([]float32, error)
	EncodeBatch(images [][]byte) ([][]float32, error)
	Close() error
	ModelInfo() ModelInfo
}

// ModelInfo enthaelt Metadaten ueber ein geladenes Modell.
type ModelInfo struct {
	Architecture string // Architektur-Name aus general.architecture
	EmbeddingDim int    // Laenge eines Ausgabe-Vektors pro Token
	ImageSize    int    // Erwartete Bildgroesse
	PatchSize    int    // Kantenlaenge eines Patches
	BlockCount   int    // Anzahl Encoder-Bloecke
	Classes      int    // Anzahl Klassen, 0 ohne Klassifikations-Kopf
	Pooling      string // Pooling-Strategie des Modells
}

// ============================================================================
// Encoder - Hauptstruktur
// ============================================================================

// Encoder implementiert VisionEncoder ueber dem eingebauten Backend.
// Ein Encoder ist nach dem Laden fuer nebenlaeufige Encode-Aufrufe
// sicher, die Durchlaeufe selbst laufen aber sequenziell.
type Encoder struct {
	mu     sync.Mutex
	model  model.Model
	pre    *Preprocessor
	info   ModelInfo
	opts   Options
	closed bool
}

var _ VisionEncoder = (*Encoder)(nil)

// ============================================================================
// Konstruktor - NewEncoder
// ============================================================================

// NewEncoder laedt ein konvertiertes Modell und gibt einen einsatzbereiten
// Encoder zurueck. Relative Pfade werden zusaetzlich im Modell-Cache
// (HYBRIDVIT_CACHE) gesucht.
func NewEncoder(ctx context.Context, modelPath string, opts ...Option) (*Encoder, error) {
	o := DefaultOptions()
	o.Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("encoder config", "env", envconfig.Values())

	path, err := resolveModelPath(modelPath)
	if err != nil {
		return nil, err
	}

	m, err := model.New(path, ml.BackendParams{NumThreads: o.Threads})
	if err != nil {
		return nil, fmt.Errorf("modell laden: %w", err)
	}

	if err := m.Backend().Load(ctx, nil); err != nil {
		m.Backend().Close()
		return nil, fmt.Errorf("gewichte laden: %w", err)
	}

	c := m.Backend().Config()
	info := extractModelInfo(c)

	if err := checkPoolingOverride(o.Pooling, info.Pooling); err != nil {
		m.Backend().Close()
		return nil, err
	}

	return &Encoder{
		model: m,
		pre:   preprocessorFor(c, info.ImageSize),
		info:  info,
		opts:  o,
	}, nil
}

// ============================================================================
// VisionEncoder Interface - Encode
// ============================================================================

// Encode konvertiert ein einzelnes Bild zu einem Embedding-Vektor.
func (e *Encoder) Encode(imageData []byte) ([]float32, error) {
	batch, err := e.EncodeBatch([][]byte{imageData})
	if err != nil {
		return nil, err
	}
	return batch[0], nil
}

// ============================================================================
// VisionEncoder Interface - EncodeBatch
// ============================================================================

// EncodeBatch konvertiert mehrere Bilder zu Embedding-Vektoren.
// Eingaben ueber der Batch-Groesse werden in Teilbatches zerlegt.
func (e *Encoder) EncodeBatch(images [][]byte) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEncoderClosed
	}
	if len(images) == 0 {
		return [][]float32{}, nil
	}

	result := make([][]float32, 0, len(images))
	for chunk := range slices.Chunk(images, e.opts.BatchSize) {
		embeddings, err := e.encodeChunk(chunk)
		if err != nil {
			return nil, err
		}
		result = append(result, embeddings...)
	}

	return result, nil
}

// encodeChunk fuehrt einen Vorwaerts-Lauf fuer hoechstens BatchSize
// Bilder aus und zerlegt die flache Ausgabe in Vektoren pro Bild.
// Dekodierung und Vorverarbeitung laufen pro Bild nebenlaeufig.
func (e *Encoder) encodeChunk(images [][]byte) ([][]float32, error) {
	size := e.pre.Size
	per := 3 * size * size
	pixels := make([]float32, len(images)*per)

	var g errgroup.Group
	for i, data := range images {
		g.Go(func() error {
			img, err := DecodeImage(data)
			if err != nil {
				return fmt.Errorf("bild %d: %w", i, err)
			}

			chw, err := e.pre.Process(img)
			if err != nil {
				return fmt.Errorf("bild %d: %w", i, err)
			}

			copy(pixels[i*per:], chw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ctx := e.model.Backend().NewContext()
	defer ctx.Close()

	batch := model.ImageBatch{Pixels: ctx.FromFloats(pixels, size, size, 3, len(images))}
	out, err := model.Forward(ctx, e.model, batch)
	if err != nil {
		return nil, err
	}

	// ml.Dump liest die Tensor-Daten zurueck, deshalb nur im Debug-Modus
	if envconfig.Debug() {
		slog.Debug("forward output", "shape", out.Shape(),
			"data", ml.Dump(ctx, out, ml.DumpWithThreshold(64)))
	}

	return e.splitEmbeddings(out.Floats(), len(images))
}

// splitEmbeddings zerlegt das flache Ausgabe-Array in einen Vektor pro
// Bild und wendet dabei das optionale Encoder-seitige Pooling an.
func (e *Encoder) splitEmbeddings(flat []float32, n int) ([][]float32, error) {
	if len(flat)%n != 0 {
		return nil, fmt.Errorf("vision: output length %d not divisible by batch size %d", len(flat), n)
	}

	per := len(flat) / n
	result := make([][]float32, n)
	for i := range result {
		block := flat[i*per : (i+1)*per]
		if e.opts.Pooling != "" {
			pooled, err := poolSequence(block, e.info.EmbeddingDim, e.opts.Pooling)
			if err != nil {
				return nil, err
			}
			block = pooled
		}
		result[i] = block
	}

	return result, nil
}

// ============================================================================
// VisionEncoder Interface - Close & ModelInfo
// ============================================================================

// Close gibt das Backend und die geladenen Gewichte frei.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEncoderClosed
	}

	e.closed = true
	if e.model != nil {
		e.model.Backend().Close()
	}
	return nil
}

// ModelInfo gibt Metadaten ueber das geladene Modell zurueck.
func (e *Encoder) ModelInfo() ModelInfo {
	return e.info
}

// ============================================================================
// Hilfsfunktionen - Pfad-Aufloesung und Metadaten
// ============================================================================

// resolveModelPath prueft den Pfad direkt und danach im Modell-Cache.
func resolveModelPath(p string) (string, error) {
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}

	if !filepath.IsAbs(p) {
		cached := filepath.Join(envconfig.CacheDir(), p)
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrModelNotFound, p)
}

// extractModelInfo holt die Modell-Metadaten aus den GGUF-Schluesseln.
// Die Embedding-Dimension ist die Laenge eines Ausgabe-Vektors pro
// Token: mit Kopf die Klassen-Anzahl, mit Repraesentations-Schicht
// deren Breite, sonst die Hidden-Dimension.
func extractModelInfo(c fs.Config) ModelInfo {
	info := ModelInfo{
		Architecture: c.Architecture(),
		ImageSize:    int(c.Uint("vision.image_size", 224)),
		PatchSize:    int(c.Uint("vision.patch_size", 16)),
		BlockCount:   int(c.Uint("vision.block_count", 12)),
		Classes:      int(c.Uint("vision.class_count", 0)),
		Pooling:      c.String("vision.pooling_type", "token"),
	}

	switch {
	case info.Classes > 0:
		info.EmbeddingDim = info.Classes
	case c.Uint("vision.representation_length", 0) > 0:
		info.EmbeddingDim = int(c.Uint("vision.representation_length", 0))
	default:
		info.EmbeddingDim = int(c.Uint("vision.embedding_length", 768))
	}

	return info
}

// preprocessorFor baut den Preprocessor aus den Normalisierungs-Werten
// des Modells. Fehlen sie, gilt mean=std=0.5 wie bei der ViT-Familie.
func preprocessorFor(c fs.Config, size int) *Preprocessor {
	var mean, std [3]float32
	copy(mean[:], c.Floats("vision.image_mean", InceptionMean[:]))
	copy(std[:], c.Floats("vision.image_std", InceptionStd[:]))
	return NewPreprocessor(size, mean, std)
}

// ============================================================================
// Hilfsfunktionen - Pooling
// ============================================================================

// checkPoolingOverride prueft ob das Encoder-seitige Pooling zum Modell
// passt. Es greift nur bei Modellen mit Sequenz-Ausgabe, "token"
// verlangt zusaetzlich ein Klassen-Token an Position 0.
func checkPoolingOverride(override, modelPooling string) error {
	if override == "" {
		return nil
	}

	if modelPooling != "unpooled" && modelPooling != "token_unpooled" {
		return fmt.Errorf("%w: model already pools with %q", ErrPoolingUnsupported, modelPooling)
	}
	if override == "token" && modelPooling != "token_unpooled" {
		return fmt.Errorf("%w: token pooling requires a class token", ErrPoolingUnsupported)
	}

	return nil
}

// poolSequence reduziert eine Token-Sequenz der Laenge dim*seq auf
// einen Vektor der Laenge dim. "token" nimmt das erste Token, "gap"
// mittelt ueber die Sequenz. Eine Laenge, die kein Vielfaches von dim
// ist, wird abgelehnt statt stillschweigend abgeschnitten.
func poolSequence(block []float32, dim int, pooling string) ([]float32, error) {
	if dim <= 0 || len(block)%dim != 0 {
		return nil, fmt.Errorf("vision: sequence length %d not divisible by embedding dim %d", len(block), dim)
	}

	if pooling == "token" || len(block) == dim {
		return block[:dim], nil
	}

	seq := len(block) / dim
	pooled := make([]float32, dim)
	for s := range seq {
		for f := range dim {
			pooled[f] += block[s*dim+f]
		}
	}
	for f := range pooled {
		pooled[f] /= float32(seq)
	}

	return pooled, nil
}
