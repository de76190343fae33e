// detect.go - Checkpoint-Typ-Erkennung aus HuggingFace config.json
//
// Erkennt den Checkpoint-Typ anhand der config.json Struktur.
package huggingface

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fehler-Definitionen
var (
	ErrConfigNotFound   = errors.New("config.json nicht gefunden")
	ErrInvalidConfig    = errors.New("ungueltige config.json Struktur")
	ErrUnknownModelType = errors.New("unbekannter model_type")
)

// DetectModelType erkennt den Checkpoint-Typ aus einer config.json Datei.
// Gibt den normalisierten Typ-String zurueck (z.B. "vit_hybrid", "vit").
func DetectModelType(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &HuggingFaceError{Op: "detect", Err: ErrConfigNotFound}
		}
		return "", &HuggingFaceError{Op: "detect", Err: fmt.Errorf("lesen: %w", err)}
	}

	config, err := ParseConfig(data)
	if err != nil {
		return "", err
	}
	return normalizeModelType(config), nil
}

// ParseConfig parst die rohen JSON-Bytes einer config.json in ModelConfig.
func ParseConfig(data []byte) (*ModelConfig, error) {
	var config ModelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &HuggingFaceError{Op: "parse", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	if config.ModelType == "" && len(config.Architectures) == 0 {
		return nil, &HuggingFaceError{Op: "parse", Err: ErrInvalidConfig}
	}
	return &config, nil
}

// normalizeModelType konvertiert model_type in einen internen Typ-String.
func normalizeModelType(config *ModelConfig) string {
	modelType := strings.ToLower(config.ModelType)

	// Direkte Mappings
	typeMap := map[string]string{
		"vit_hybrid": ModelTypeViTHybrid, "vit-hybrid": ModelTypeViTHybrid,
		"hybrid_vit": ModelTypeViTHybrid,
		"vit":        ModelTypeViT,
		"vit_model":  ModelTypeViT,
		"deit":       ModelTypeDeiT,
	}
	if t, ok := typeMap[modelType]; ok {
		// Ein Backbone-Block macht aus einem ViT einen Hybrid
		if t == ModelTypeViT && config.BackboneConfig != nil {
			return ModelTypeViTHybrid
		}
		return t
	}

	// Aus Architectures ableiten
	for _, arch := range config.Architectures {
		archLower := strings.ToLower(arch)
		switch {
		case strings.Contains(archLower, "vithybrid"):
			return ModelTypeViTHybrid
		case strings.Contains(archLower, "deit"):
			return ModelTypeDeiT
		case strings.Contains(archLower, "vit"):
			if config.BackboneConfig != nil {
				return ModelTypeViTHybrid
			}
			return ModelTypeViT
		}
	}
	// Bekannte Checkpoints ueberbruecken fehlende oder exotische Typ-Felder
	if km, ok := LookupKnownModel(cmp.Or(config.ModelID, config.NameOrPath)); ok {
		return km.ModelType
	}

	if modelType != "" {
		return modelType
	}
	return "unknown"
}

// DetectFromDirectory erkennt den Checkpoint-Typ aus einem Verzeichnis.
func DetectFromDirectory(dirPath string) (string, *ModelConfig, error) {
	configPath := filepath.Join(dirPath, "config.json")
	modelType, err := DetectModelType(configPath)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return modelType, nil, nil
	}
	config, err := ParseConfig(data)
	if err != nil {
		return modelType, nil, nil
	}
	return modelType, config, nil
}

// IsVisionModel prueft ob ein ModelConfig ein Vision-Modell repraesentiert.
func IsVisionModel(config *ModelConfig) bool {
	if config == nil {
		return false
	}
	modelType := strings.ToLower(config.ModelType)
	for _, t := range []string{"vit", "deit", "beit", "swin", "hybrid"} {
		if strings.Contains(modelType, t) {
			return true
		}
	}
	for _, arch := range config.Architectures {
		archLower := strings.ToLower(arch)
		if strings.Contains(archLower, "imageclass") || strings.Contains(archLower, "visionmodel") {
			return true
		}
	}
	return config.PatchSize > 0 || config.ImageSize > 0
}

// HasBackbone prueft ob das Modell einen ResNet-Stem traegt.
func HasBackbone(config *ModelConfig) bool {
	return config != nil && config.BackboneConfig != nil && len(config.BackboneConfig.Depths) > 0
}

// NumClasses gibt die Groesse des Klassifikations-Kopfes zurueck.
func NumClasses(config *ModelConfig) int {
	if config == nil {
		return 0
	}
	return len(config.ID2Label)
}

// GetEmbeddingDimension gibt die Embedding-Dimension des Modells zurueck.
func GetEmbeddingDimension(config *ModelConfig) int {
	if config != nil && config.HiddenSize > 0 {
		return config.HiddenSize
	}
	return DefaultHiddenSize
}

// containsAny prueft ob str mindestens einen der Substrings enthaelt.
func containsAny(str string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(str, sub) {
			return true
		}
	}
	return false
}
