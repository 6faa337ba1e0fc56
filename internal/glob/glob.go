package glob

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Glob returns the absolute paths of entries under opts.Cwd matched by
// patterns. Patterns starting with '!' exclude; later patterns take
// precedence over earlier ones for the same entry. Absolute patterns are
// allowed. Results are in walk order: sorted by name, parents before their
// children.
func Glob(patterns []string, opts Options) ([]string, error) {
	o, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(o.Cwd) {
		return nil, fmt.Errorf("glob: cwd must be absolute (got %q)", o.Cwd)
	}
	cwd := filepath.ToSlash(filepath.Clean(o.Cwd))

	var expanded []pattern
	positive := false
	for _, raw := range patterns {
		neg := strings.HasPrefix(raw, "!")
		body := strings.TrimPrefix(raw, "!")
		if body == "" {
			continue
		}
		for _, alt := range expandBraces(body) {
			alt = filepath.ToSlash(alt)
			if !path.IsAbs(alt) {
				alt = path.Join(cwd, alt)
			}
			segs := splitSegments(path.Clean(alt))
			if len(segs) == 0 {
				continue
			}
			expanded = append(expanded, pattern{negating: neg, segments: segs})
			positive = positive || !neg
		}
	}
	if !positive {
		return nil, nil
	}

	base := commonLiteralPrefix(expanded)
	for i := range expanded {
		expanded[i].segments = expanded[i].segments[len(base):]
	}
	matchers, err := compile(expanded)
	if err != nil {
		return nil, err
	}

	root := filepath.FromSlash("/" + strings.Join(base, "/"))
	w := &walker{opts: &o}
	if err := w.matchInDir(newRootEntry(root), matchers); err != nil {
		return nil, fmt.Errorf("glob: walking %s: %w", root, err)
	}
	return w.result, nil
}

// commonLiteralPrefix returns the longest run of leading literal segments
// shared by every pattern, leaving at least one segment per pattern.
func commonLiteralPrefix(ps []pattern) []string {
	var prefix []string
	for i := 0; ; i++ {
		var seg string
		for j, p := range ps {
			if i >= len(p.segments)-1 || hasMeta(p.segments[i]) || p.segments[i] == "**" {
				return prefix
			}
			if j == 0 {
				seg = p.segments[i]
			} else if p.segments[i] != seg {
				return prefix
			}
		}
		prefix = append(prefix, seg)
	}
}

// Match reports whether target, a slash separated name or path, matches
// pattern. A leading '!' inverts the result. Invalid patterns never match.
func Match(pat, target string, opts Options) bool {
	negated := false
	for strings.HasPrefix(pat, "!") {
		negated = !negated
		pat = pat[1:]
	}
	return MatchAny([]string{pat}, target, opts) != negated
}

// MatchAny matches target against a pattern list with the same precedence
// rules as Glob: '!' patterns exclude, and later patterns win.
func MatchAny(patterns []string, target string, opts Options) bool {
	var ps []pattern
	for _, raw := range patterns {
		neg := strings.HasPrefix(raw, "!")
		body := strings.TrimPrefix(raw, "!")
		for _, alt := range expandBraces(body) {
			segs := splitSegments(path.Clean(filepath.ToSlash(alt)))
			if len(segs) == 0 {
				continue
			}
			ps = append(ps, pattern{negating: neg, segments: segs})
		}
	}
	matchers, err := compile(ps)
	if err != nil || len(matchers) == 0 {
		return false
	}
	segs := splitSegments(filepath.ToSlash(target))
	if len(segs) == 0 {
		return false
	}
	return matchSegments(matchers, segs, &opts)
}

// pathEntry is a synthetic entry used when matching strings instead of a
// directory tree.
type pathEntry struct {
	name  string
	isDir bool
}

func (e pathEntry) Name() string { return e.name }
func (e pathEntry) IsDir() bool  { return e.isDir }

// matchSegments mirrors walker.matchDirEntry along a single path.
func matchSegments(matchers []Matcher, segs []string, opts *Options) bool {
	last := len(segs) == 1
	e := pathEntry{name: segs[0], isDir: !last}
	var next []Matcher
	included := false

	var check func(m Matcher) bool
	check = func(m Matcher) bool {
		res := m.Match(e, opts)
		switch res {
		case MatchPartial:
			next = append(append([]Matcher(nil), m.Children()...), next...)
		case MatchTryNext, MatchRecursive:
			children := m.Children()
			for i := len(children) - 1; i >= 0; i-- {
				if check(children[i]) {
					return true
				}
			}
			if res == MatchRecursive {
				next = append([]Matcher{m}, next...)
			}
		case MatchTerminal:
			if m.Negating() {
				return true
			}
			included = true
		}
		return false
	}

	for i := len(matchers) - 1; i >= 0; i-- {
		if check(matchers[i]) {
			break
		}
	}
	if last {
		return included
	}
	if len(next) == 0 || allNegating(next) {
		return false
	}
	return matchSegments(next, segs[1:], opts)
}
