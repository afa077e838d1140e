package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "registry.yaml")
	doc := "papers:\n  - pinn\n  - rice\n  - all-in-one\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("expected 3 papers, got %d", reg.Len())
	}
	if !reg.Contains("pinn") || !reg.Contains("all-in-one") {
		t.Fatalf("expected registered papers to be contained")
	}
	if reg.Contains("unknown-paper") {
		t.Fatalf("unexpected membership for unknown-paper")
	}
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte("papers: []\n"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty registry")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewDeduplicates(t *testing.T) {
	t.Parallel()

	reg := New([]string{"pinn", "rice", "pinn"})
	if reg.Len() != 2 {
		t.Fatalf("expected 2 papers after dedup, got %d", reg.Len())
	}
	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "pinn" || ids[1] != "rice" {
		t.Fatalf("unexpected id order: %v", ids)
	}
}
