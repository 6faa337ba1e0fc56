package glob

// walker evaluates a matcher forest against a lazily listed tree.
type walker struct {
	opts   *Options
	result []string
}

func (w *walker) matchInDir(dir *lazyEntry, matchers []Matcher) error {
	children, err := dir.list()
	if err != nil {
		return err
	}
	for _, child := range children {
		if w.opts.Types == TypesDirs && !child.isDir {
			continue
		}
		if child.isSymlink && w.opts.SymbolicLinks == SymlinksIgnore {
			continue
		}
		if err := w.matchDirEntry(child, matchers); err != nil {
			return err
		}
	}
	return nil
}

// matchDirEntry classifies e against matchers, bottom to top, collecting the
// matchers that survive into e's children.
func (w *walker) matchDirEntry(e *lazyEntry, matchers []Matcher) error {
	var next []Matcher
	included := false
	include := func() {
		if !included {
			w.result = append(w.result, e.path)
			included = true
		}
	}

	// check returns true when a negated terminal match ends evaluation for e.
	var check func(m Matcher) bool
	check = func(m Matcher) bool {
		res := m.Match(e, w.opts)
		switch res {
		case MatchNone:
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
			if len(children) == 0 && e.isDir && w.opts.Types != TypesFiles {
				include()
			}
		case MatchTerminal:
			if m.Negating() {
				return true
			}
			if e.isDir && w.opts.ExpandDirectories {
				next = append([]Matcher{&recursiveMatcher{}}, next...)
			}
			if w.opts.Types == TypesAll ||
				(w.opts.Types == TypesDirs && e.isDir) ||
				(w.opts.Types == TypesFiles && !e.isDir) {
				include()
			}
		}
		return false
	}

	for i := len(matchers) - 1; i >= 0; i-- {
		if check(matchers[i]) {
			break
		}
	}

	follow := !e.isSymlink || w.opts.SymbolicLinks == SymlinksFollow
	if !follow || len(next) == 0 || !e.isDir || allNegating(next) {
		return nil
	}
	if e.isSymlink && e.loops() {
		return nil
	}
	return w.matchInDir(e, next)
}
