package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerCarriesContextFields(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	logg := New(Options{ServiceName: "storefront", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithOperation(context.Background(), "cart.add")
	ctx = logg.WithProductID(ctx, 42)
	logg.Info(ctx, "line added")

	out := buf.String()
	for _, want := range []string{`"service":"storefront"`, `"operation":"cart.add"`, `"product_id":42`, "line added"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %s, got %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("WARN"); got != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", got)
	}
	if got := ParseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("expected fallback to info, got %v", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info for empty, got %v", got)
	}
}
