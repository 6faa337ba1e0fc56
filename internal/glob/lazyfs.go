package glob

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// lazyEntry is a directory entry whose children are listed on first use and
// cached for the lifetime of one walk.
type lazyEntry struct {
	name      string
	path      string
	isDir     bool
	isSymlink bool

	listed   bool
	children []*lazyEntry
}

func (e *lazyEntry) Name() string { return e.name }
func (e *lazyEntry) IsDir() bool  { return e.isDir }

func newRootEntry(dir string) *lazyEntry {
	return &lazyEntry{name: filepath.Base(dir), path: dir, isDir: true}
}

// list returns the entry's children sorted by name. Missing directories list
// as empty.
func (e *lazyEntry) list() ([]*lazyEntry, error) {
	if e.listed {
		return e.children, nil
	}
	e.listed = true
	if !e.isDir {
		return nil, nil
	}

	dirents, err := os.ReadDir(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, nil
		}
		return nil, err
	}

	children := make([]*lazyEntry, 0, len(dirents))
	for _, d := range dirents {
		child := &lazyEntry{
			name:      d.Name(),
			path:      filepath.Join(e.path, d.Name()),
			isDir:     d.IsDir(),
			isSymlink: d.Type()&fs.ModeSymlink != 0,
		}
		if child.isSymlink {
			// dangling links are kept as plain files
			if info, err := os.Stat(child.path); err == nil {
				child.isDir = info.IsDir()
			}
		}
		children = append(children, child)
	}
	e.children = children
	return children, nil
}

// loops reports whether following the symlinked directory e would re-enter
// one of its own ancestors.
func (e *lazyEntry) loops() bool {
	target, err := filepath.EvalSymlinks(e.path)
	if err != nil {
		return true
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(e.path))
	if err != nil {
		return true
	}
	return parent == target || strings.HasPrefix(parent+string(filepath.Separator), target+string(filepath.Separator))
}
