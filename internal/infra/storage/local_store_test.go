package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"telegram-invoicing-crm/internal/domain"
)

func TestLocalStore_SaveAndOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	rel, err := store.Save(ctx, []byte("pdf-bytes"), "application/pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(rel, "proofs"+string(filepath.Separator)) || !strings.HasSuffix(rel, ".pdf") {
		t.Fatalf("unexpected path shape: %q", rel)
	}

	full, err := store.Open(rel)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := os.ReadFile(full)
	if err != nil || string(data) != "pdf-bytes" {
		t.Fatalf("readback: %q %v", data, err)
	}
}

func TestLocalStore_UniquePaths(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := NewLocalStore(t.TempDir())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rel, err := store.Save(ctx, []byte("x"), "image/png")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if seen[rel] {
			t.Fatalf("duplicate path %q", rel)
		}
		seen[rel] = true
	}
}

func TestLocalStore_RefusesUnsupportedMIME(t *testing.T) {
	t.Parallel()

	store, _ := NewLocalStore(t.TempDir())
	if _, err := store.Save(context.Background(), []byte("x"), "application/zip"); !errors.Is(err, domain.ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
}

func TestLocalStore_OpenRefusesTraversal(t *testing.T) {
	t.Parallel()

	store, _ := NewLocalStore(t.TempDir())
	if _, err := store.Open("../../etc/passwd"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
