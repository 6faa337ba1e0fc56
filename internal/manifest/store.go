package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store holds the on-disk manifest files of one task instance.
type Store struct {
	// Path is the manifest of the last successful run.
	Path string
	// PrevPath receives Path while a run is in progress.
	PrevPath string
	// NextPath stages a manifest before it is renamed to Path.
	NextPath string
	// DiffPath receives the full change list of a cache miss.
	DiffPath string
}

// SetAside moves the current manifest to PrevPath and returns it. ok is
// false when no manifest existed. A stale PrevPath left by an interrupted
// run is discarded.
func (s Store) SetAside() (prev *Manifest, ok bool, err error) {
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if rmErr := os.Remove(s.PrevPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				return nil, false, rmErr
			}
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := os.Rename(s.Path, s.PrevPath); err != nil {
		return nil, false, fmt.Errorf("set aside manifest: %w", err)
	}
	data, err := os.ReadFile(s.PrevPath)
	if err != nil {
		return nil, false, fmt.Errorf("read previous manifest: %w", err)
	}
	prev, err = Parse(data)
	if err != nil {
		// an unreadable manifest only costs a cache miss
		return &Manifest{}, true, nil
	}
	return prev, true, nil
}

// Read loads the current manifest.
func (s Store) Read() (*Manifest, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Write stores m at Path through NextPath so readers never observe a
// partially written manifest.
func (s Store) Write(m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := writeFileAtomic(s.NextPath, s.Path, m.Encode(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Delete removes the current manifest, forcing a miss on the next run.
func (s Store) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete manifest: %w", err)
	}
	return nil
}

// WriteDiff persists the rendered change list.
func (s Store) WriteDiff(lines []string) error {
	if err := os.MkdirAll(filepath.Dir(s.DiffPath), 0o755); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}
	data := []byte(strings.Join(lines, "\n") + "\n")
	if err := writeFileAtomic(s.DiffPath+".next", s.DiffPath, data, 0o644); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to staging and renames it over path.
func writeFileAtomic(staging, path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		_ = f.Close()
		if !committed {
			_ = os.Remove(staging)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	_ = f.Sync() // best-effort durability
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(staging, path); err != nil {
		return err
	}
	committed = true
	return nil
}
