package models

import "time"

// ModelPrice is one row of the per-model price table, in USD per million
// tokens. Family is the normalized substring used to match unregistered
// model strings (e.g. "claude-sonnet" matches "claude-sonnet-4-20250514").
// Exactly one row carries IsDefault, used when no family matches.
type ModelPrice struct {
	Model            string `gorm:"primaryKey;size:128"`
	Family           string `gorm:"size:64;index"`
	InputPerMillion  float64
	OutputPerMillion float64
	IsDefault        bool `gorm:"default:false"`
	CreatedAt        time.Time
}
