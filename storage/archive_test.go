package storage

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gz)

	entries := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		var body []byte
		if hdr.Typeflag == tar.TypeReg {
			if body, err = io.ReadAll(tr); err != nil {
				t.Fatalf("read entry %s: %v", hdr.Name, err)
			}
		}
		entries[hdr.Name] = string(body)
	}
	return entries
}

func TestPackRootsTreeAtSubmission(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "team-a-entry")
	if err := os.MkdirAll(filepath.Join(src, "code", "deep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"reproduce.sh":       "#!/bin/sh\necho hi\n",
		"code/train.py":      "print('train')\n",
		"code/deep/model.py": "weights = 3\n",
	}
	for rel, body := range files {
		if err := os.WriteFile(filepath.Join(src, rel), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	packer := NewArchivePackerAt(t.TempDir())
	archive, err := packer.Pack(src)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	defer os.Remove(archive)

	if !strings.HasSuffix(archive, ".tar.gz") {
		t.Fatalf("expected .tar.gz archive, got %s", archive)
	}

	entries := readArchive(t, archive)
	for name := range entries {
		if name != ArchiveRoot+"/" && !strings.HasPrefix(name, ArchiveRoot+"/") {
			t.Fatalf("entry %s not rooted at %s", name, ArchiveRoot)
		}
	}
	for rel, body := range files {
		got, ok := entries[ArchiveRoot+"/"+rel]
		if !ok {
			t.Fatalf("missing entry for %s", rel)
		}
		if got != body {
			t.Fatalf("entry %s: expected %q, got %q", rel, body, got)
		}
	}

	// the source tree must be untouched
	data, err := os.ReadFile(filepath.Join(src, "code", "train.py"))
	if err != nil || string(data) != files["code/train.py"] {
		t.Fatalf("source tree modified: %v", err)
	}
}

func TestPackPreservesSymlinks(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "sub")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "real.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink("real.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	packer := NewArchivePackerAt(t.TempDir())
	archive, err := packer.Pack(src)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	defer os.Remove(archive)

	f, err := os.Open(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gz)
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		if hdr.Name == ArchiveRoot+"/link.txt" {
			found = true
			if hdr.Typeflag != tar.TypeSymlink || hdr.Linkname != "real.txt" {
				t.Fatalf("expected symlink to real.txt, got type %v link %q", hdr.Typeflag, hdr.Linkname)
			}
		}
	}
	if !found {
		t.Fatalf("symlink entry missing from archive")
	}
}

func TestPackRejectsMissingDir(t *testing.T) {
	t.Parallel()

	packer := NewArchivePacker()
	if _, err := packer.Pack(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestPackRejectsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	packer := NewArchivePacker()
	if _, err := packer.Pack(path); err == nil {
		t.Fatalf("expected error for non-directory source")
	}
}
