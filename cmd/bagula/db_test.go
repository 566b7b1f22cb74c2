package main

import (
	"strings"
	"testing"
)

func TestDBCmd_Help(t *testing.T) {
	out, err := runCmd(t, "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	for _, sub := range []string{"init", "migrate", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestDBInit(t *testing.T) {
	cfgPath := writeSQLiteConfig(t)

	out, err := runCmd(t, "db", "init", "-c", cfgPath)
	if err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	if !strings.Contains(out, "Migrated 8 tables") {
		t.Errorf("expected migration summary, got: %s", out)
	}
	if !strings.Contains(out, "Seeded") {
		t.Errorf("expected price seeding summary, got: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success message, got: %s", out)
	}
}

func TestDBInit_Idempotent(t *testing.T) {
	cfgPath := writeSQLiteConfig(t)

	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("first db init failed: %v", err)
	}
	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("second db init failed: %v", err)
	}
}

func TestDBInit_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "db", "init", "-c", "/nonexistent/bagula.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBReset_RequiresConfirmation(t *testing.T) {
	cfgPath := writeSQLiteConfig(t)

	_, err := runCmd(t, "db", "reset", "-c", cfgPath)
	if err == nil {
		t.Fatal("expected error without --yes")
	}
	if !strings.Contains(err.Error(), "--yes") {
		t.Errorf("error = %q, want to mention --yes", err.Error())
	}
}

func TestDBReset(t *testing.T) {
	cfgPath := writeSQLiteConfig(t)

	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	out, err := runCmd(t, "db", "reset", "-c", cfgPath, "--yes")
	if err != nil {
		t.Fatalf("db reset failed: %v", err)
	}
	if !strings.Contains(out, "reset successfully") {
		t.Errorf("expected reset success message, got: %s", out)
	}
}
