package storage

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArchiveRoot is the fixed top-level entry name inside every packed
// archive. Graders rely on it regardless of the submission directory's
// real name.
const ArchiveRoot = "submission"

// ArchivePacker packs submission directories into gzip-compressed tar
// archives for handoff to the grader.
type ArchivePacker struct {
	tmpDir string // "" means the system temp dir
}

// NewArchivePacker creates a new archive packer writing into the system
// temp dir.
func NewArchivePacker() *ArchivePacker {
	return &ArchivePacker{}
}

// NewArchivePackerAt creates a packer writing archives into dir.
func NewArchivePackerAt(dir string) *ArchivePacker {
	return &ArchivePacker{tmpDir: dir}
}

// Pack archives the directory at dir into a fresh .tar.gz and returns the
// archive path. Inside the archive the tree is rooted at ArchiveRoot, not
// at the directory's own name. The source tree is never modified; the
// caller owns the returned file.
func (p *ArchivePacker) Pack(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("stat submission: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("submission %s is not a directory", dir)
	}

	f, err := os.CreateTemp(p.tmpDir, "submission-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	if err := p.writeTar(f, dir); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close archive: %w", err)
	}
	return f.Name(), nil
}

func (p *ArchivePacker) writeTar(w io.Writer, dir string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := ArchiveRoot
		if rel != "." {
			name = ArchiveRoot + "/" + filepath.ToSlash(rel)
		}
		return addEntry(tw, path, name, d)
	})
	if err != nil {
		return fmt.Errorf("pack %s: %w", dir, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}
