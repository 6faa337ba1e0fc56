package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"lazyweave/internal/glob"
)

// Patterns is an include/exclude glob pair.
type Patterns struct {
	Include []string
	Exclude []string
}

func (p Patterns) globList() []string {
	out := make([]string, 0, len(p.Include)+len(p.Exclude))
	out = append(out, p.Include...)
	for _, ex := range p.Exclude {
		out = append(out, "!"+strings.TrimPrefix(ex, "!"))
	}
	return out
}

// Upstream is a completed task instance whose state feeds into this one.
type Upstream struct {
	Key string
	// InheritsInput adds an upstream record carrying the digest of the
	// manifest at ManifestPath.
	InheritsInput bool
	ManifestPath  string
	// UsesOutput adds the files matched by Outputs under Dir.
	UsesOutput bool
	Dir        string
	Outputs    Patterns
}

// Spec describes everything a task instance's manifest observes.
type Spec struct {
	// RootDir anchors the relative paths written to the manifest.
	RootDir string
	// Dir is the task's working directory; relative patterns resolve here.
	Dir string

	Inputs     Patterns
	BaseInputs Patterns
	EnvInputs  []string
	// Env is the environment snapshot envInputs are read from.
	Env map[string]string

	Command   string
	Upstreams []Upstream
}

// Builder turns a Spec into a Manifest.
type Builder struct {
	Hasher *Hasher
	// Concurrency bounds parallel file hashing; <= 0 uses GOMAXPROCS.
	Concurrency int
}

// NewBuilder returns a Builder sharing hasher.
func NewBuilder(hasher *Hasher) *Builder {
	if hasher == nil {
		hasher = NewHasher(0)
	}
	return &Builder{Hasher: hasher}
}

// Build observes the current state described by spec. prev, when not nil,
// is the previous manifest of the same task; files whose mtime is unchanged
// reuse its hash.
func (b *Builder) Build(ctx context.Context, spec Spec, prev *Manifest) (*Manifest, error) {
	files, err := b.collectFiles(spec)
	if err != nil {
		return nil, err
	}

	var prevFiles map[string]Record
	if prev != nil {
		prevFiles = prev.Files()
	}

	records := make([]Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	limit := b.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, abs := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := b.fileRecord(spec.RootDir, abs, prevFiles)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	envNames := append([]string{}, spec.EnvInputs...)
	sort.Strings(envNames)
	for _, name := range envNames {
		value, set := spec.Env[name]
		records = append(records, Record{Kind: KindEnv, ID: name, Hash: HashEnv(value, set)})
	}

	for _, up := range spec.Upstreams {
		if !up.InheritsInput {
			continue
		}
		records = append(records, Record{Kind: KindUpstream, ID: up.Key, Hash: upstreamDigest(up.ManifestPath)})
	}

	if spec.Command != "" {
		records = append(records, Record{Kind: KindCommand, ID: commandRecordID, Hash: HashCommand(spec.Command)})
	}
	return New(records), nil
}

// collectFiles resolves the absolute input file set, sorted and unique. A
// pattern naming a directory observes every file below it.
func (b *Builder) collectFiles(spec Spec) ([]string, error) {
	seen := make(map[string]struct{})
	add := func(paths []string) {
		for _, p := range paths {
			seen[p] = struct{}{}
		}
	}

	patterns := Patterns{
		Include: append(append([]string{}, spec.Inputs.Include...), spec.BaseInputs.Include...),
		Exclude: append(append([]string{}, spec.Inputs.Exclude...), spec.BaseInputs.Exclude...),
	}
	if len(patterns.Include) > 0 {
		matched, err := glob.Glob(patterns.globList(), glob.Options{Cwd: spec.Dir, ExpandDirectories: true})
		if err != nil {
			return nil, fmt.Errorf("resolve inputs: %w", err)
		}
		add(matched)
	}

	for _, up := range spec.Upstreams {
		if !up.UsesOutput || len(up.Outputs.Include) == 0 {
			continue
		}
		matched, err := glob.Glob(up.Outputs.globList(), glob.Options{Cwd: up.Dir, ExpandDirectories: true})
		if err != nil {
			return nil, fmt.Errorf("resolve outputs of %s: %w", up.Key, err)
		}
		add(matched)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (b *Builder) fileRecord(rootDir, abs string, prevFiles map[string]Record) (Record, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return Record{}, fmt.Errorf("stat input %s: %w", abs, err)
	}
	id := relPath(rootDir, abs)
	mtime := info.ModTime().UnixNano()
	if prev, ok := prevFiles[id]; ok && prev.MTime == mtime && prev.Hash != "" {
		return Record{Kind: KindFile, ID: id, Hash: prev.Hash, MTime: mtime}, nil
	}
	sum, err := b.Hasher.HashFile(abs, info)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: KindFile, ID: id, Hash: sum, MTime: mtime}, nil
}

// relPath renders abs relative to rootDir with forward slashes; paths
// outside the root stay absolute.
func relPath(rootDir, abs string) string {
	rel, err := filepath.Rel(rootDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// upstreamDigest summarises an upstream manifest. An upstream without a
// manifest, such as one with caching disabled, yields a fixed marker.
func upstreamDigest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "none"
	}
	m, err := Parse(data)
	if err != nil {
		return "invalid"
	}
	return m.Digest()
}
