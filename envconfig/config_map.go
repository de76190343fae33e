// config_map.go - Export der Konfiguration fuer Diagnose-Zwecke
package envconfig

import "fmt"

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"HYBRIDVIT_DEBUG":       {"HYBRIDVIT_DEBUG", LogLevel(), "Show additional debug information (e.g. HYBRIDVIT_DEBUG=1)"},
		"HYBRIDVIT_NUM_THREADS": {"HYBRIDVIT_NUM_THREADS", NumThreads(), "Number of threads for the CPU backend (default: GOMAXPROCS)"},
		"HYBRIDVIT_CACHE":       {"HYBRIDVIT_CACHE", CacheDir(), "The path to the converted model cache"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
