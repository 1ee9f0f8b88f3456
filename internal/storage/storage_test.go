package storage

import (
	"context"
	"testing"

	"github.com/greenmart/storefront/pkg/config"
	"github.com/greenmart/storefront/pkg/logger"
	"github.com/rs/zerolog"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func TestOpenFileBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.State.Backend = config.StateBackendFile
	cfg.State.Dir = t.TempDir()

	store, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.Set(context.Background(), SlotCart, "[]"); err != nil {
		t.Fatalf("Set through store: %v", err)
	}
}

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.State.Backend = config.StateBackendSQLite
	cfg.State.Dir = t.TempDir()

	store, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Set(context.Background(), SlotToken, "tok"); err != nil {
		t.Fatalf("Set through store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.State.Backend = "punchcards"
	cfg.State.Dir = t.TempDir()

	if _, err := Open(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpenValidatesArguments(t *testing.T) {
	if _, err := Open(context.Background(), nil, testLogger()); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := Open(context.Background(), &config.Config{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestStoreCloseNilSafe(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("nil store close should be nil, got %v", err)
	}
}
