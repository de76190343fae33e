// Package model - Model-Interface und Initialisierung
//
// Dieses Paket definiert das Model-Interface und stellt Funktionen
// zur Initialisierung und Verwaltung von Vision-Modellen bereit.
//
// Hauptkomponenten:
// - Model: Interface fuer alle Modell-Architekturen
// - Base: Basis-Implementierung fuer gemeinsame Funktionalitaet
// - New: Erstellt neue Model-Instanzen
// - Register: Registriert Modell-Konstruktoren
// - Forward: Fuehrt Vorwaerts-Pass durch

package model

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/hybridvit/hybridvit/fs"
	"github.com/hybridvit/hybridvit/ml"
	_ "github.com/hybridvit/hybridvit/ml/backend/cpu"
)

var (
	// ErrUnsupportedModel wird zurueckgegeben wenn die Architektur
	// keinem registrierten Modell entspricht
	ErrUnsupportedModel = errors.New("model not supported")

	// ErrNoVisionModel wird zurueckgegeben wenn ein Modell keine
	// Bild-Eingabe verarbeitet
	ErrNoVisionModel = errors.New("model does not support image input")
)

// ImageBatch buendelt die Eingabe eines Vorwaerts-Laufs
type ImageBatch struct {
	// Pixels enthaelt die vorverarbeiteten Bilder als Tensor der
	// Form (Breite, Hoehe, Kanaele, Batch)
	Pixels ml.Tensor

	// Train aktiviert Dropout und Batch-Statistiken
	Train bool

	// Seed initialisiert den Zufallsgenerator fuer Dropout
	Seed int64
}

// Model definiert das Basis-Interface fuer alle Modell-Architekturen
type Model interface {
	Backend() ml.Backend
}

// VisionModel ist ein Modell, das Bild-Batches verarbeitet
type VisionModel interface {
	Model

	Forward(ml.Context, ImageBatch) (ml.Tensor, error)
}

// Validator ist ein optionales Interface fuer Post-Load-Validierung
type Validator interface {
	Validate() error
}

// Base implementiert gemeinsame Felder und Methoden fuer alle Modelle
type Base struct {
	b ml.Backend
}

// Backend gibt das Backend zurueck, das das Modell ausfuehrt
func (m *Base) Backend() ml.Backend {
	return m.b
}

// models speichert registrierte Modell-Konstruktoren
var models = make(map[string]func(fs.Config) (Model, error))

// Register registriert einen Modell-Konstruktor fuer eine Architektur
func Register(name string, f func(fs.Config) (Model, error)) {
	if _, ok := models[name]; ok {
		panic("model: model already registered")
	}

	models[name] = f
}

// New initialisiert eine neue Model-Instanz basierend auf den
// Metadaten. Die Gewichte werden erst durch Backend().Load geladen.
func New(modelPath string, params ml.BackendParams) (Model, error) {
	b, err := ml.NewBackend(modelPath, params)
	if err != nil {
		return nil, err
	}

	m, err := modelForArch(b.Config())
	if err != nil {
		return nil, err
	}

	base := Base{b: b}
	v := reflect.ValueOf(m)
	v.Elem().Set(populateFields(base, v.Elem()))

	if validator, ok := m.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// modelForArch erstellt ein Model basierend auf der Architektur
func modelForArch(c fs.Config) (Model, error) {
	arch := c.Architecture()

	f, ok := models[arch]
	if !ok {
		if closest := closestArch(arch); closest != "" {
			return nil, fmt.Errorf("%w: %q (closest match %q)", ErrUnsupportedModel, arch, closest)
		}

		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, arch)
	}

	return f(c)
}

// closestArch sucht die registrierte Architektur mit der kleinsten
// Levenshtein-Distanz zum angefragten Namen
func closestArch(arch string) string {
	var closest string
	score := math.MaxInt

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if s := levenshtein.ComputeDistance(arch, name); s < score {
			score = s
			closest = name
		}
	}

	if score < 5 {
		return closest
	}

	return ""
}

// Forward fuehrt einen Vorwaerts-Pass durch das Modell aus
func Forward(ctx ml.Context, m Model, batch ImageBatch) (ml.Tensor, error) {
	vm, ok := m.(VisionModel)
	if !ok {
		return nil, ErrNoVisionModel
	}

	if batch.Pixels == nil {
		return nil, errors.New("batch requires pixels")
	}

	t, err := vm.Forward(ctx, batch)
	if err != nil {
		return nil, err
	}

	ctx.Forward(t)

	return t, nil
}
