// MODUL: options
// ZWECK: Functional Options fuer die Encoder-Konfiguration
// INPUT: Optionale Konfigurationsparameter (Threads, BatchSize, Pooling)
// OUTPUT: Options Struct mit Konfiguration
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: envconfig
// HINWEISE: Verwendet Functional Options Pattern fuer erweiterbare Konfiguration

package vision

import (
	"errors"

	"github.com/hybridvit/hybridvit/envconfig"
)

// Options enthaelt die Konfiguration fuer einen Encoder.
type Options struct {
	// Threads ist die Anzahl der CPU-Threads fuer das Backend
	Threads int

	// BatchSize ist die maximale Anzahl Bilder pro Vorwaerts-Lauf.
	// EncodeBatch teilt groessere Eingaben in Teilbatches auf.
	BatchSize int

	// Pooling ueberschreibt die Ausgabe-Poolung auf Encoder-Ebene.
	// Gueltig sind "token" und "gap"; leer uebernimmt die Strategie
	// des Modells. Nur fuer Modelle mit Sequenz-Ausgabe erlaubt.
	Pooling string
}

// Option ist eine funktionale Option fuer Options.
type Option func(*Options)

var (
	ErrInvalidThreads   = errors.New("vision: invalid thread count")
	ErrInvalidBatchSize = errors.New("vision: invalid batch size")
	ErrInvalidPooling   = errors.New("vision: invalid pooling override")
)

// DefaultBatchSize ist die Standard-Batch-Groesse fuer EncodeBatch
const DefaultBatchSize = 4

// DefaultOptions gibt eine Standard-Konfiguration zurueck.
// Die Thread-Anzahl kommt aus HYBRIDVIT_NUM_THREADS bzw. der
// CPU-Kern-Anzahl.
func DefaultOptions() Options {
	return Options{
		Threads:   envconfig.NumThreads(),
		BatchSize: DefaultBatchSize,
	}
}

// WithThreads setzt die Anzahl der CPU-Threads.
// Werte <= 0 werden ignoriert.
func WithThreads(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Threads = n
		}
	}
}

// WithBatchSize setzt die Batch-Groesse fuer EncodeBatch.
// Werte <= 0 werden ignoriert.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BatchSize = n
		}
	}
}

// WithPooling setzt eine Encoder-seitige Poolung der Sequenz-Ausgabe.
// Gueltige Werte: "token", "gap"
func WithPooling(p string) Option {
	return func(o *Options) {
		o.Pooling = p
	}
}

// Apply wendet alle Options an.
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// Validate prueft ob die Options gueltig sind.
func (o *Options) Validate() error {
	if o.Threads <= 0 {
		return ErrInvalidThreads
	}

	if o.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	switch o.Pooling {
	case "", "token", "gap":
		return nil
	default:
		return ErrInvalidPooling
	}
}
