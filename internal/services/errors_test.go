package services_test

import (
	"errors"
	"testing"

	"clipdex/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrTransient, "organizer", "move file", "failed to move", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "scanner", "", "walk failed", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker: %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	cfgErr := services.Wrap(services.ErrConfiguration, "scanner", "validate", "no sources configured", nil)
	if !services.IsFatal(cfgErr) {
		t.Fatal("configuration errors are fatal")
	}
	if services.IsFatal(services.Wrap(services.ErrExternalTool, "transcriber", "run", "exec failed", nil)) {
		t.Fatal("external tool errors are per-item")
	}
}
