// MODUL: preprocess
// ZWECK: Bild-Vorverarbeitung fuer den Encoder
// INPUT: Dekodierte Bilder (ImageInput)
// OUTPUT: Normalisierte CHW-Pixeldaten als []float32
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: golang.org/x/image/draw, huggingface
// HINWEISE: Repliziert die Pipeline der HuggingFace-Bildprozessoren

package vision

import (
	"errors"
	"fmt"

	"golang.org/x/image/draw"

	"github.com/hybridvit/hybridvit/huggingface"
)

// Preprocessor wandelt dekodierte Bilder in normalisierte CHW-Daten um.
//
// Zwei Betriebsarten:
//   - Direkter Resize auf Size x Size. Standard fuer konvertierte
//     Modelle, deren Metadaten nur die Eingabegroesse tragen.
//   - Resize der kuerzeren Kante auf ShortestEdge gefolgt von einem
//     mittigen Zuschnitt auf Size x Size, wie es die Prozessoren der
//     ViT-Familie machen (z.B. 248 -> 224).
type Preprocessor struct {
	// Size ist die quadratische Zielgroesse in Pixeln
	Size int

	// ShortestEdge ist die Resize-Kante vor dem Zuschnitt.
	// Nur wirksam wenn CenterCrop gesetzt ist.
	ShortestEdge int

	// Mean und Std sind die Normalisierungs-Parameter pro Kanal (RGB)
	Mean [3]float32
	Std  [3]float32

	// CenterCrop aktiviert Kanten-Resize plus mittigen Zuschnitt
	CenterCrop bool

	scaler draw.Scaler
}

// NewPreprocessor gibt einen Preprocessor mit direktem Resize und
// bikubischer Interpolation zurueck.
func NewPreprocessor(size int, mean, std [3]float32) *Preprocessor {
	return &Preprocessor{
		Size:   size,
		Mean:   mean,
		Std:    std,
		scaler: draw.CatmullRom,
	}
}

// PreprocessorFromConfig baut einen Preprocessor aus einer
// HuggingFace preprocessor_config.json.
func PreprocessorFromConfig(cfg *huggingface.PreprocessorConfig) *Preprocessor {
	p := &Preprocessor{scaler: scalerFor(huggingface.GetResampleMethod(cfg))}

	p.Size, _ = huggingface.GetImageSize(cfg)

	if mean := huggingface.GetImageMean(cfg); len(mean) >= 3 {
		copy(p.Mean[:], mean)
	}
	if std := huggingface.GetImageStd(cfg); len(std) >= 3 {
		copy(p.Std[:], std)
	}

	if huggingface.ShouldCenterCrop(cfg) {
		p.CenterCrop = true
		if cfg.CropSize != nil && cfg.CropSize.Height > 0 {
			p.Size = cfg.CropSize.Height
		}
		if cfg.Size != nil && cfg.Size.ShortestEdge > 0 {
			p.ShortestEdge = cfg.Size.ShortestEdge
		}
	}

	return p
}

// scalerFor waehlt den Interpolations-Kernel zur Resample-Methode
func scalerFor(method string) draw.Scaler {
	switch method {
	case "nearest":
		return draw.NearestNeighbor
	case "bilinear":
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// Process fuehrt die komplette Vorverarbeitung durch:
// Alpha-Kompositierung, Resize, optional Zuschnitt, Normalisierung.
// Die Ausgabe hat CHW-Reihenfolge und Laenge 3*Size*Size.
func (p *Preprocessor) Process(img *ImageInput) ([]float32, error) {
	if img == nil || img.Image == nil {
		return nil, errors.New("kein bild")
	}
	if p.Size <= 0 {
		return nil, fmt.Errorf("ungueltige Zielgroesse: %d", p.Size)
	}

	scaler := p.scaler
	if scaler == nil {
		scaler = draw.CatmullRom
	}

	work := CompositeAlpha(img)

	var err error
	if p.CenterCrop && p.ShortestEdge > 0 {
		work, err = p.resizeShortest(work, scaler)
		if err != nil {
			return nil, err
		}
		work, err = CenterCrop(work, p.Size, p.Size)
	} else {
		work, err = resizeWith(work, p.Size, p.Size, scaler)
	}
	if err != nil {
		return nil, err
	}

	return NormalizeRGB(work, p.Mean, p.Std), nil
}

// resizeShortest skaliert die kuerzere Kante auf ShortestEdge,
// das Seitenverhaeltnis bleibt erhalten
func (p *Preprocessor) resizeShortest(img *ImageInput, scaler draw.Scaler) (*ImageInput, error) {
	shorter := img.Width
	if img.Height < shorter {
		shorter = img.Height
	}

	ratio := float64(p.ShortestEdge) / float64(shorter)
	newW := int(float64(img.Width)*ratio + 0.5)
	newH := int(float64(img.Height)*ratio + 0.5)
	return resizeWith(img, newW, newH, scaler)
}
