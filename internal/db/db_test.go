package db

import (
	"strings"
	"testing"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default root user",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, Name: "bagula"},
			want: "root@tcp(127.0.0.1:3306)/bagula?parseTime=true",
		},
		{
			name: "custom user with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3307, Name: "bagula_prod", User: "bagula", Password: "s3cret"},
			want: "bagula:s3cret@tcp(db.internal:3307)/bagula_prod?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err)
	}
}

func TestConnect_SQLiteInMemory(t *testing.T) {
	gdb, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := SeedPrices(gdb); err != nil {
		t.Fatalf("seed prices: %v", err)
	}

	var count int64
	if err := gdb.Model(&models.ModelPrice{}).Count(&count).Error; err != nil {
		t.Fatalf("count prices: %v", err)
	}
	if count != int64(len(DefaultPrices())) {
		t.Errorf("price rows = %d, want %d", count, len(DefaultPrices()))
	}

	// Seeding twice must not duplicate or overwrite.
	if err := SeedPrices(gdb); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	gdb.Model(&models.ModelPrice{}).Count(&count)
	if count != int64(len(DefaultPrices())) {
		t.Errorf("price rows after re-seed = %d, want %d", count, len(DefaultPrices()))
	}

	var def models.ModelPrice
	if err := gdb.Where("is_default = ?", true).First(&def).Error; err != nil {
		t.Fatalf("default price row: %v", err)
	}
	if def.InputPerMillion <= 0 || def.OutputPerMillion <= 0 {
		t.Errorf("default rates = %v/%v, want positive", def.InputPerMillion, def.OutputPerMillion)
	}
}
