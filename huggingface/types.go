// types.go - Typen fuer Checkpoint-Konfiguration und Model-Detection
//
// Enthaelt Typen fuer:
// - config.json Parsing (ModelConfig, BackboneConfig)
// - preprocessor_config.json Parsing (PreprocessorConfig)
// - Registry bekannter Checkpoints (KnownModel)
package huggingface

// Unterstuetzte Checkpoint-Typen
const (
	ModelTypeViTHybrid = "vit_hybrid"
	ModelTypeViT       = "vit"
	ModelTypeDeiT      = "deit"
)

// Standard-Werte fuer Modell-Parameter
const (
	DefaultImageSize  = 224
	DefaultPatchSize  = 16
	DefaultNumHeads   = 12
	DefaultHiddenSize = 768
)

// ModelConfig enthaelt die Metadaten aus einer HuggingFace config.json.
// Hybrid-Checkpoints tragen zusaetzlich einen backbone_config Block
// fuer den ResNet-Stem.
type ModelConfig struct {
	// Basis-Identifikation
	ModelType     string   `json:"model_type"`
	Architectures []string `json:"architectures,omitempty"`
	NameOrPath    string   `json:"_name_or_path,omitempty"`
	ModelID       string   `json:"-"` // Nicht in JSON, wird extern gesetzt

	// Encoder-Dimensionen
	HiddenSize        int     `json:"hidden_size,omitempty"`
	IntermediateSize  int     `json:"intermediate_size,omitempty"`
	NumHiddenLayers   int     `json:"num_hidden_layers,omitempty"`
	NumAttentionHeads int     `json:"num_attention_heads,omitempty"`
	LayerNormEps      float64 `json:"layer_norm_eps,omitempty"`

	// Bild-Parameter
	ImageSize   int `json:"image_size,omitempty"`
	PatchSize   int `json:"patch_size,omitempty"`
	NumChannels int `json:"num_channels,omitempty"`

	// Regularisierung
	HiddenDropoutProb         float64 `json:"hidden_dropout_prob,omitempty"`
	AttentionProbsDropoutProb float64 `json:"attention_probs_dropout_prob,omitempty"`

	// Klassifikations-Kopf: classifier waehlt die Pooling-Strategie
	// (token, gap, unpooled, token_unpooled), id2label liefert die
	// Klassenzahl
	Classifier         string            `json:"classifier,omitempty"`
	RepresentationSize int               `json:"representation_size,omitempty"`
	ID2Label           map[string]string `json:"id2label,omitempty"`

	// MBConv-Parameter der Hybrid-Bloecke
	ExpandRatio float64 `json:"expand_ratio,omitempty"`
	SEReduction int     `json:"se_reduction,omitempty"`

	// ResNet-Stem (BiT-Backbone), nil fuer reine ViT-Checkpoints
	BackboneConfig *BackboneConfig `json:"backbone_config,omitempty"`

	// Zusaetzliche Felder
	TorchDtype          string `json:"torch_dtype,omitempty"`
	TransformersVersion string `json:"transformers_version,omitempty"`
}

// BackboneConfig beschreibt den BiT-ResNet-Stem aus dem
// backbone_config Block der config.json
type BackboneConfig struct {
	ModelType   string `json:"model_type,omitempty"`
	Depths      []int  `json:"depths,omitempty"`
	WidthFactor int    `json:"width_factor,omitempty"`
	NumGroups   int    `json:"num_groups,omitempty"`
}

// PreprocessorConfig enthaelt die Bildvorverarbeitungs-Parameter
// aus preprocessor_config.json
type PreprocessorConfig struct {
	// Typ des Preprocessors
	ImageProcessorType string `json:"image_processor_type,omitempty"`
	ProcessorClass     string `json:"processor_class,omitempty"`

	// Bildgroesse (verschiedene Formate moeglich)
	Size     *ImageSizeConfig `json:"size,omitempty"`
	CropSize *ImageSizeConfig `json:"crop_size,omitempty"`

	// Direkte Groessenangaben (Alternative)
	ImageSizeDirect int `json:"image_size,omitempty"`
	Height          int `json:"height,omitempty"`
	Width           int `json:"width,omitempty"`

	// Normalisierung
	ImageMean []float32 `json:"image_mean,omitempty"`
	ImageStd  []float32 `json:"image_std,omitempty"`

	// Resampling
	Resample     int  `json:"resample,omitempty"`
	DoResize     bool `json:"do_resize,omitempty"`
	DoCenterCrop bool `json:"do_center_crop,omitempty"`
	DoNormalize  bool `json:"do_normalize,omitempty"`
	DoRescale    bool `json:"do_rescale,omitempty"`
	DoConvertRGB bool `json:"do_convert_rgb,omitempty"`

	// Rescale-Faktor
	RescaleFactor float32 `json:"rescale_factor,omitempty"`
}

// ImageSizeConfig repraesentiert die Bildgroesse in verschiedenen Formaten
type ImageSizeConfig struct {
	Height       int `json:"height,omitempty"`
	Width        int `json:"width,omitempty"`
	ShortestEdge int `json:"shortest_edge,omitempty"`
	LongestEdge  int `json:"longest_edge,omitempty"`
}

// KnownModel beschreibt einen bekannten Checkpoint mit den
// Preprocessing-Defaults fuer Konvertierung und Inferenz
type KnownModel struct {
	// Identifikation
	Pattern   string // Glob-Pattern fuer Model-ID (z.B. "google/vit-hybrid-*")
	ModelType string // Interner Typ-Identifikator

	// Metadaten
	Description string
	Tags        []string

	// Defaults fuer Preprocessing (falls nicht in config)
	DefaultImageMean []float32
	DefaultImageStd  []float32
	DefaultImageSize int
}

// HuggingFaceError repraesentiert einen Fehler bei Checkpoint-Operationen
type HuggingFaceError struct {
	Op      string // Operation (detect, parse, load)
	ModelID string // Betroffenes Modell
	Err     error  // Urspruenglicher Fehler
}

// Error implementiert das error Interface
func (e *HuggingFaceError) Error() string {
	if e.ModelID != "" {
		return "huggingface " + e.Op + " [" + e.ModelID + "]: " + e.Err.Error()
	}
	return "huggingface " + e.Op + ": " + e.Err.Error()
}

// Unwrap ermoeglicht errors.Is/As
func (e *HuggingFaceError) Unwrap() error {
	return e.Err
}
