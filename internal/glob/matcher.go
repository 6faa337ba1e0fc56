package glob

import (
	"regexp"
	"strings"
)

// MatchResult classifies a directory entry against one matcher node.
type MatchResult int

const (
	// MatchNone excludes the entry for this matcher.
	MatchNone MatchResult = iota
	// MatchPartial means the matcher's children may match below the entry.
	MatchPartial
	// MatchTerminal means the matcher fully matches the entry.
	MatchTerminal
	// MatchTryNext is returned by "**" for an ignored dotfile: its children
	// are tried against the entry but "**" does not descend into it.
	MatchTryNext
	// MatchRecursive is returned by "**": its children are tried against the
	// entry and "**" itself stays live for the entry's children.
	MatchRecursive
)

func (r MatchResult) String() string {
	switch r {
	case MatchNone:
		return "none"
	case MatchPartial:
		return "partial"
	case MatchTerminal:
		return "terminal"
	case MatchTryNext:
		return "try-next"
	case MatchRecursive:
		return "recursive"
	default:
		return "unknown"
	}
}

// entry is the view of a directory entry a matcher needs.
type entry interface {
	Name() string
	IsDir() bool
}

// Matcher is a compiled pattern node.
type Matcher interface {
	Match(e entry, opts *Options) MatchResult
	Children() []Matcher
	Negating() bool
}

// segmentMatcher matches exactly one path segment.
type segmentMatcher struct {
	source   string
	literal  bool
	re       *regexp.Regexp
	negating bool
	// explicitDot is set when the segment itself starts with '.', which lets
	// it match dotfiles even when Options.Dot is false.
	explicitDot bool
	children    []Matcher
}

func (m *segmentMatcher) Children() []Matcher { return m.children }
func (m *segmentMatcher) Negating() bool      { return m.negating }

func (m *segmentMatcher) Match(e entry, opts *Options) MatchResult {
	name := e.Name()
	if m.literal {
		if name != m.source {
			return MatchNone
		}
	} else if !m.re.MatchString(name) {
		return MatchNone
	}
	ignore := strings.HasPrefix(name, ".") && !opts.Dot && !m.explicitDot
	// negated patterns always match dotfiles
	if ignore && !m.negating {
		return MatchNone
	}
	if len(m.children) == 0 {
		return MatchTerminal
	}
	return MatchPartial
}

// recursiveMatcher is the "**" node.
type recursiveMatcher struct {
	negating bool
	children []Matcher
}

func (m *recursiveMatcher) Children() []Matcher { return m.children }
func (m *recursiveMatcher) Negating() bool      { return m.negating }

func (m *recursiveMatcher) Match(e entry, opts *Options) MatchResult {
	ignore := strings.HasPrefix(e.Name(), ".") && !opts.Dot
	if len(m.children) == 0 {
		if m.negating {
			return MatchTerminal
		}
		switch {
		case ignore:
			return MatchNone
		case opts.ExpandDirectories || !e.IsDir():
			return MatchTerminal
		default:
			return MatchRecursive
		}
	}
	// A child may still name the dotfile explicitly ("**/.lazy"), so an
	// ignored entry is handed to the children instead of being dropped.
	if ignore {
		return MatchTryNext
	}
	return MatchRecursive
}

func allNegating(ms []Matcher) bool {
	for _, m := range ms {
		if !m.Negating() {
			return false
		}
	}
	return true
}
