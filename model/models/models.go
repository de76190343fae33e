// models.go - Registrierung aller Modell-Architekturen
package models

import (
	_ "github.com/hybridvit/hybridvit/model/models/hybridvit"
)
