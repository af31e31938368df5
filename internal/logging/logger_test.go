package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, err := NewLogger(dir, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	// Directory should exist
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Info("test_message_from_logging_test")

	// lumberjack opens the file on first write
	if _, err := os.Stat(filepath.Join(dir, "opsboard.log")); err != nil {
		t.Fatalf("log file missing: %v", err)
	}
}

func TestNewLogger_Level(t *testing.T) {
	log, err := NewLogger(t.TempDir(), "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Fatalf("debug should be enabled")
	}
	if _, err := NewLogger(t.TempDir(), "loud"); err == nil {
		t.Fatalf("want error for unknown level")
	}
}
