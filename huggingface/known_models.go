// known_models.go - Registry bekannter Hybrid-ViT Checkpoints
//
// Definiert bekannte Vision-Checkpoints mit Standard-Konfigurationen
// fuer Konvertierung und Preprocessing.
package huggingface

import (
	"path/filepath"
	"strings"
)

// Standard-Normalisierungswerte. Die ViT-Familie normalisiert im
// Inception-Stil mit mean=std=0.5.
var (
	DefaultImageMeanImageNet  = []float32{0.485, 0.456, 0.406}
	DefaultImageStdImageNet   = []float32{0.229, 0.224, 0.225}
	DefaultImageMeanInception = []float32{0.5, 0.5, 0.5}
	DefaultImageStdInception  = []float32{0.5, 0.5, 0.5}
)

// KnownModels enthaelt alle bekannten Vision-Checkpoints
var KnownModels = map[string]KnownModel{
	// Google Hybrid-ViT (ResNet-Stem + Transformer)
	"google/vit-hybrid-base-bit-384": newHybridModel("google/vit-hybrid-base-bit-384", 384,
		"Google ViT-Hybrid Base - BiT-ResNet-Stem mit ViT-Base Encoder"),
	"google/vit-hybrid-*": newHybridModel("google/vit-hybrid-*", 224,
		"Google ViT-Hybrid Varianten"),

	// Google ViT
	"google/vit-base-patch16-*": newViTModel("google/vit-base-patch16-*", 224,
		"Google ViT Base - 16x16 Patches"),
	"google/vit-base-patch32-*": newViTModel("google/vit-base-patch32-*", 224,
		"Google ViT Base - 32x32 Patches"),
	"google/vit-large-patch16-*": newViTModel("google/vit-large-patch16-*", 224,
		"Google ViT Large - 16x16 Patches"),
	"google/vit-large-patch32-*": newViTModel("google/vit-large-patch32-*", 384,
		"Google ViT Large - 32x32 Patches"),

	// Facebook DeiT (destillierte ViT-Varianten)
	"facebook/deit-*": {
		Pattern: "facebook/deit-*", ModelType: ModelTypeDeiT,
		Description:      "Meta DeiT - Data-efficient Image Transformer",
		Tags:             []string{"vision", "classification", "deit"},
		DefaultImageMean: DefaultImageMeanImageNet, DefaultImageStd: DefaultImageStdImageNet,
		DefaultImageSize: 224,
	},

	// timm Portierungen
	"timm/vit_*": newViTModel("timm/vit_*", 224,
		"timm ViT-Varianten inklusive Hybrid-Konfigurationen"),
}

// Factory-Funktionen fuer bekannte Modelle
func newHybridModel(pattern string, imageSize int, desc string) KnownModel {
	return KnownModel{
		Pattern: pattern, ModelType: ModelTypeViTHybrid,
		Description:      desc,
		Tags:             []string{"vision", "classification", "hybrid"},
		DefaultImageMean: DefaultImageMeanInception, DefaultImageStd: DefaultImageStdInception,
		DefaultImageSize: imageSize,
	}
}

func newViTModel(pattern string, imageSize int, desc string) KnownModel {
	return KnownModel{
		Pattern: pattern, ModelType: ModelTypeViT,
		Description:      desc,
		Tags:             []string{"vision", "classification", "vit"},
		DefaultImageMean: DefaultImageMeanInception, DefaultImageStd: DefaultImageStdInception,
		DefaultImageSize: imageSize,
	}
}

// LookupKnownModel sucht einen bekannten Checkpoint anhand der Model-ID
func LookupKnownModel(modelID string) (*KnownModel, bool) {
	if model, ok := KnownModels[modelID]; ok {
		return &model, true
	}
	for pattern, model := range KnownModels {
		if matchPattern(pattern, modelID) {
			return &model, true
		}
	}
	return nil, false
}

// matchPattern prueft ob eine Model-ID einem Glob-Pattern entspricht
func matchPattern(pattern, modelID string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == modelID
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(modelID, strings.TrimSuffix(pattern, "*"))
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 2 {
		return strings.HasPrefix(modelID, parts[0]) && strings.HasSuffix(modelID, parts[1])
	}
	matched, _ := filepath.Match(pattern, modelID)
	return matched
}

// GetAllKnownPatterns gibt alle registrierten Model-Patterns zurueck
func GetAllKnownPatterns() []string {
	patterns := make([]string, 0, len(KnownModels))
	for p := range KnownModels {
		patterns = append(patterns, p)
	}
	return patterns
}

// GetModelsByType gibt alle bekannten Checkpoints eines Typs zurueck
func GetModelsByType(modelType string) []KnownModel {
	var models []KnownModel
	for _, m := range KnownModels {
		if m.ModelType == modelType {
			models = append(models, m)
		}
	}
	return models
}

// GetModelsByTag gibt alle bekannten Checkpoints mit einem Tag zurueck
func GetModelsByTag(tag string) []KnownModel {
	var models []KnownModel
	for _, m := range KnownModels {
		for _, t := range m.Tags {
			if t == tag {
				models = append(models, m)
				break
			}
		}
	}
	return models
}

// IsKnownModel prueft ob eine Model-ID bekannt ist
func IsKnownModel(modelID string) bool {
	_, found := LookupKnownModel(modelID)
	return found
}

// GetSupportedModelTypes gibt alle unterstuetzten Checkpoint-Typen zurueck
func GetSupportedModelTypes() []string {
	return []string{ModelTypeViTHybrid, ModelTypeViT, ModelTypeDeiT}
}
