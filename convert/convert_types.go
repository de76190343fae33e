// convert_types.go - Basis-Typen fuer Checkpoint-Konvertierung
// Haupttypen: ModelParameters, KV, ModelKV, ModelConverter
package convert

import (
	"io/fs"
	"iter"
	"maps"
	"strings"

	"github.com/hybridvit/hybridvit/fs/ggml"
)

// ModelParameters - Gemeinsame Konfiguration aus config.json
type ModelParameters struct {
	Architectures []string `json:"architectures"`
	ModelType     string   `json:"model_type"`
}

// KV - Key-Value Map fuer GGUF Metadaten
type KV map[string]any

// Architecture - Gibt die Modell-Architektur zurueck
func (kv KV) Architecture() string {
	return kv.String("general.architecture", "unknown")
}

// valueTypes - Erlaubte Einzelwert-Typen fuer KV
type valueTypes interface {
	uint8 | int8 | uint16 | int16 |
		uint32 | int32 | uint64 | int64 |
		string | float32 | float64 | bool
}

// arrayValueTypes - Erlaubte Array-Typen fuer KV
type arrayValueTypes interface {
	[]uint8 | []int8 | []uint16 | []int16 |
		[]uint32 | []int32 | []uint64 | []int64 |
		[]string | []float32 | []float64 | []bool
}

// keyValue - Generische Funktion zum Abrufen von Werten aus KV
func keyValue[T valueTypes | arrayValueTypes](kv KV, key string, defaultValue ...T) (T, bool) {
	if !strings.HasPrefix(key, "general.") {
		key = kv.Architecture() + "." + key
	}

	if val, ok := kv[key].(T); ok {
		return val, true
	}
	return defaultValue[0], false
}

// String - Gibt String-Wert zurueck
func (kv KV) String(key string, defaultValue ...string) string {
	val, _ := keyValue(kv, key, append(defaultValue, "")...)
	return val
}

// Uint - Gibt uint32-Wert zurueck
func (kv KV) Uint(key string, defaultValue ...uint32) uint32 {
	val, _ := keyValue(kv, key, append(defaultValue, 0)...)
	return val
}

// Float - Gibt float32-Wert zurueck
func (kv KV) Float(key string, defaultValue ...float32) float32 {
	val, _ := keyValue(kv, key, append(defaultValue, 0)...)
	return val
}

// Bool - Gibt bool-Wert zurueck
func (kv KV) Bool(key string, defaultValue ...bool) bool {
	val, _ := keyValue(kv, key, append(defaultValue, false)...)
	return val
}

// Strings - Gibt String-Array zurueck
func (kv KV) Strings(key string, defaultValue ...[]string) []string {
	val, _ := keyValue(kv, key, append(defaultValue, []string{""})...)
	return val
}

// Ints - Gibt int32-Array zurueck
func (kv KV) Ints(key string, defaultValue ...[]int32) []int32 {
	val, _ := keyValue(kv, key, append(defaultValue, []int32{0})...)
	return val
}

// Uints - Gibt uint32-Array zurueck
func (kv KV) Uints(key string, defaultValue ...[]uint32) []uint32 {
	val, _ := keyValue(kv, key, append(defaultValue, []uint32{0})...)
	return val
}

// Floats - Gibt float32-Array zurueck
func (kv KV) Floats(key string, defaultValue ...[]float32) []float32 {
	val, _ := keyValue(kv, key, append(defaultValue, []float32{0})...)
	return val
}

// Len - Anzahl der Eintraege
func (kv KV) Len() int {
	return len(kv)
}

// Keys - Gibt alle Schluessel zurueck
func (kv KV) Keys() iter.Seq[string] {
	return maps.Keys(kv)
}

// Value - Gibt einen Wert zurueck
func (kv KV) Value(key string) any {
	return kv[key]
}

// KV - Erstellt die Basis-KV-Map fuer alle Konverter
func (ModelParameters) KV() KV {
	return KV{
		"general.file_type":            uint32(1),
		"general.quantization_version": uint32(2),
	}
}

// ModelKV - Interface fuer Model-KV-Mapping
type ModelKV interface {
	// KV maps checkpoint parameters to GGUF key-values
	KV() KV
}

// ModelConverter - Interface fuer Model-Konvertierung
type ModelConverter interface {
	ModelKV

	// Tensors maps input tensors to GGUF tensors. Model specific modifications can be done here.
	Tensors([]Tensor) []*ggml.Tensor
	// Replacements returns a list of string pairs to replace in tensor names.
	// See [strings.Replacer](https://pkg.go.dev/strings#Replacer) for details
	Replacements() []string
}

// moreParser - Interface fuer zusaetzliches Parsen
type moreParser interface {
	parseMore(fs.FS) error
}
