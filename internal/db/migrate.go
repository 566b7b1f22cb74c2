package db

import (
	"fmt"

	"github.com/bagula/platform/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.Turn{},
		&models.ModelCall{},
		&models.ToolCall{},
		&models.Opportunity{},
		&models.Baseline{},
		&models.AnalysisJob{},
		&models.ModelPrice{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DefaultPrices is the built-in price table, USD per million tokens. The
// "default" row is used when no family matches an observed model string.
func DefaultPrices() []models.ModelPrice {
	return []models.ModelPrice{
		{Model: "claude-opus-4", Family: "claude-opus", InputPerMillion: 15.0, OutputPerMillion: 75.0},
		{Model: "claude-sonnet-4", Family: "claude-sonnet", InputPerMillion: 3.0, OutputPerMillion: 15.0},
		{Model: "claude-haiku-4", Family: "claude-haiku", InputPerMillion: 0.80, OutputPerMillion: 4.0},
		{Model: "gpt-5", Family: "gpt-5", InputPerMillion: 1.25, OutputPerMillion: 10.0},
		{Model: "gpt-5-mini", Family: "gpt-5-mini", InputPerMillion: 0.25, OutputPerMillion: 2.0},
		{Model: "gpt-4o", Family: "gpt-4o", InputPerMillion: 2.50, OutputPerMillion: 10.0},
		{Model: "gemini-2.5-pro", Family: "gemini", InputPerMillion: 1.25, OutputPerMillion: 10.0},
		// Sonnet-tier pricing is the documented default for unknown models.
		{Model: "default", Family: "", InputPerMillion: 3.0, OutputPerMillion: 15.0, IsDefault: true},
	}
}

// SeedPrices upserts the built-in price table. Existing rows keep any
// operator-tuned rates.
func SeedPrices(db *gorm.DB) error {
	for _, p := range DefaultPrices() {
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
		if result.Error != nil {
			return fmt.Errorf("db: seed price %q: %w", p.Model, result.Error)
		}
	}
	return nil
}
