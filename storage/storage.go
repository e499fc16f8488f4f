package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// Store keeps uploads in a flat input directory until they are processed,
// then moves them into the output directory.
type Store struct {
	inputDir  string
	outputDir string
}

func New(inputDir, outputDir string) (*Store, error) {
	for _, d := range []string{inputDir, outputDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Store{inputDir: inputDir, outputDir: outputDir}, nil
}

func (s *Store) InputDir() string  { return s.inputDir }
func (s *Store) OutputDir() string { return s.outputDir }

// Save writes r under a fresh UUID name that keeps the extension of originalName.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	name := uuid.NewString() + Ext(originalName)
	p := filepath.Join(s.inputDir, name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", err
	}
	return p, nil
}

// Promote moves a saved upload into the output directory and returns its new path.
func (s *Store) Promote(p string) (string, error) {
	dst := filepath.Join(s.outputDir, filepath.Base(p))
	err := os.Rename(p, dst)
	if err == nil {
		return dst, nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return "", err
	}
	if err := copyFile(p, dst); err != nil {
		os.Remove(dst)
		return "", err
	}
	if err := os.Remove(p); err != nil {
		return "", err
	}
	return dst, nil
}

// Discard removes an upload that could not be processed.
func (s *Store) Discard(p string) error {
	err := os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Ext returns the extension of a client supplied file name, or "" when it is
// not a plain extension.
func Ext(name string) string {
	// clients may send full paths from either platform
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
