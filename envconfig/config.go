// config.go - Laufzeit-Konfiguration aus Environment-Variablen
//
// Dieses Modul enthaelt:
// - LogLevel/Debug: Log-Stufe (HYBRIDVIT_DEBUG)
// - NumThreads: Thread-Anzahl fuer das CPU-Backend (HYBRIDVIT_NUM_THREADS)
// - CacheDir: Verzeichnis fuer konvertierte Modelle (HYBRIDVIT_CACHE)
//
// Modell-Hyperparameter kommen nicht aus der Umgebung, sondern aus den
// GGUF-Metadaten (fs.Config).
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via HYBRIDVIT_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("HYBRIDVIT_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Debug meldet ob Debug-Logging aktiv ist
func Debug() bool {
	return LogLevel() <= slog.LevelDebug
}

// NumThreads gibt die Thread-Anzahl fuer das CPU-Backend zurueck
// Konfigurierbar via HYBRIDVIT_NUM_THREADS
// Default: GOMAXPROCS
func NumThreads() int {
	if s := Var("HYBRIDVIT_NUM_THREADS"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil && n > 0 {
			return int(n)
		}
		slog.Warn("invalid environment variable, using default", "key", "HYBRIDVIT_NUM_THREADS", "value", s)
	}

	return runtime.GOMAXPROCS(0)
}

// CacheDir gibt das Verzeichnis zurueck, in dem konvertierte Modelle
// abgelegt und aufgeloest werden
// Konfigurierbar via HYBRIDVIT_CACHE
// Default: $HOME/.hybridvit/cache
func CacheDir() string {
	if s := Var("HYBRIDVIT_CACHE"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".hybridvit", "cache")
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
