package glob

import "fmt"

// EntryTypes selects which kind of directory entries a walk returns.
type EntryTypes string

const (
	TypesAll   EntryTypes = "all"
	TypesFiles EntryTypes = "files"
	TypesDirs  EntryTypes = "dirs"
)

// SymlinkPolicy controls how symbolic links are treated during a walk.
type SymlinkPolicy string

const (
	SymlinksFollow SymlinkPolicy = "follow"
	SymlinksIgnore SymlinkPolicy = "ignore"
)

// Options configures Glob and Match.
//
// Cwd must be absolute for Glob; relative patterns are resolved against it.
type Options struct {
	Cwd string

	// Types defaults to TypesFiles.
	Types EntryTypes

	// SymbolicLinks defaults to SymlinksFollow.
	SymbolicLinks SymlinkPolicy

	// Dot allows wildcards to match names beginning with '.'.
	Dot bool

	// ExpandDirectories includes the whole subtree of any directory matched
	// by a terminal segment.
	ExpandDirectories bool
}

func (o Options) normalized() (Options, error) {
	switch o.Types {
	case "":
		o.Types = TypesFiles
	case TypesAll, TypesFiles, TypesDirs:
	default:
		return o, fmt.Errorf("glob: invalid entry types %q", o.Types)
	}
	switch o.SymbolicLinks {
	case "":
		o.SymbolicLinks = SymlinksFollow
	case SymlinksFollow, SymlinksIgnore:
	default:
		return o, fmt.Errorf("glob: invalid symlink policy %q", o.SymbolicLinks)
	}
	return o, nil
}
