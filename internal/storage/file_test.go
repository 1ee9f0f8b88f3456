package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFileKVRoundTrip(t *testing.T) {
	t.Parallel()

	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	ctx := context.Background()

	if _, err := kv.Get(ctx, SlotCart); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for fresh dir, got %v", err)
	}

	if err := kv.Set(ctx, SlotCart, `[{"product_id":1,"quantity":2}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := kv.Get(ctx, SlotCart)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != `[{"product_id":1,"quantity":2}]` {
		t.Fatalf("unexpected value %q", value)
	}

	// Overwrite replaces the whole slot.
	if err := kv.Set(ctx, SlotCart, `[]`); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	value, err = kv.Get(ctx, SlotCart)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if value != `[]` {
		t.Fatalf("expected overwritten value, got %q", value)
	}

	if err := kv.Remove(ctx, SlotCart); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := kv.Get(ctx, SlotCart); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}

	// Removing an absent slot is not an error.
	if err := kv.Remove(ctx, SlotCart); err != nil {
		t.Fatalf("Remove absent: %v", err)
	}
}

func TestFileKVSanitizesSlotNames(t *testing.T) {
	t.Parallel()

	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	ctx := context.Background()

	if err := kv.Set(ctx, "../escape", "nope"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := kv.Get(ctx, "../escape")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "nope" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestFileKVRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := NewFileKV("  "); err == nil {
		t.Fatal("expected error for blank dir")
	}
}
