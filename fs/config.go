// Package fs - Modell-Konfiguration
//
// Dieses Modul definiert das Config-Interface fuer Modell-Hyperparameter.
// Implementiert wird es von fs/ggml.KV (GGUF Key-Value Metadaten); Backends
// reichen es an die Modell-Konstruktoren weiter.
package fs

import "iter"

// Config liefert typisierte Hyperparameter eines geladenen Modells.
// Schluessel ohne "general."-Praefix werden gegen die Architektur
// aufgeloest ("vision.patch_size" -> "<arch>.vision.patch_size").
type Config interface {
	Architecture() string

	String(key string, defaultValue ...string) string
	Uint(key string, defaultValue ...uint32) uint32
	Float(key string, defaultValue ...float32) float32
	Bool(key string, defaultValue ...bool) bool

	Strings(key string, defaultValue ...[]string) []string
	Ints(key string, defaultValue ...[]int32) []int32
	Uints(key string, defaultValue ...[]uint32) []uint32
	Floats(key string, defaultValue ...[]float32) []float32

	// Len, Keys und Value geben rohen Zugriff auf die Schluessel,
	// gebraucht von der GGUF-Serialisierung.
	Len() int
	Keys() iter.Seq[string]
	Value(key string) any
}
