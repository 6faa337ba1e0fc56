package glob

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern is one brace-expanded glob split into segments.
type pattern struct {
	negating bool
	segments []string
}

// expandBraces expands "{a,b}" alternatives, including nested ones.
// Braces without a top-level comma are kept literally.
func expandBraces(p string) []string {
	depth := 0
	start := -1
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth != 0 {
				continue
			}
			alts := splitAlternatives(p[start+1 : i])
			if len(alts) < 2 {
				start = -1
				continue
			}
			prefix, suffix := p[:start], p[i+1:]
			var out []string
			for _, alt := range alts {
				out = append(out, expandBraces(prefix+alt+suffix)...)
			}
			return out
		}
	}
	return []string{p}
}

func splitAlternatives(body string) []string {
	var out []string
	depth := 0
	last := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[last:i])
				last = i + 1
			}
		}
	}
	return append(out, body[last:])
}

// splitSegments splits a slash separated pattern, dropping empty and "."
// segments.
func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s == "" || s == "." {
			continue
		}
		out = append(out, s)
	}
	return out
}

func hasMeta(segment string) bool {
	return strings.ContainsAny(segment, `*?[\`)
}

// compileSegment turns one path segment into a segmentMatcher.
func compileSegment(seg string, negating bool) (*segmentMatcher, error) {
	m := &segmentMatcher{source: seg, negating: negating, explicitDot: strings.HasPrefix(seg, ".")}
	if !hasMeta(seg) {
		m.literal = true
		return m, nil
	}

	var re strings.Builder
	var lit strings.Builder
	literal := true
	re.WriteString("^")
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch c {
		case '\\':
			if i+1 < len(seg) {
				i++
				re.WriteString(regexp.QuoteMeta(string(seg[i])))
				lit.WriteByte(seg[i])
			} else {
				re.WriteString(`\\`)
				lit.WriteByte(c)
			}
		case '*':
			literal = false
			re.WriteString(`[^/]*`)
		case '?':
			literal = false
			re.WriteString(`[^/]`)
		case '[':
			end := classEnd(seg, i)
			if end < 0 {
				re.WriteString(`\[`)
				lit.WriteByte(c)
				continue
			}
			literal = false
			re.WriteString(translateClass(seg[i+1 : end]))
			i = end
		default:
			re.WriteString(regexp.QuoteMeta(string(c)))
			lit.WriteByte(c)
		}
	}
	re.WriteString("$")

	if literal {
		m.literal = true
		m.source = lit.String()
		m.explicitDot = strings.HasPrefix(m.source, ".")
		return m, nil
	}
	compiled, err := regexp.Compile(re.String())
	if err != nil {
		return nil, fmt.Errorf("glob: invalid segment %q: %w", seg, err)
	}
	m.re = compiled
	return m, nil
}

// classEnd returns the index of the ']' closing the class opened at start,
// or -1 when the class is unterminated.
func classEnd(seg string, start int) int {
	i := start + 1
	if i < len(seg) && (seg[i] == '!' || seg[i] == '^') {
		i++
	}
	// a leading ']' is part of the class
	if i < len(seg) && seg[i] == ']' {
		i++
	}
	for ; i < len(seg); i++ {
		switch seg[i] {
		case '\\':
			i++
		case ']':
			return i
		}
	}
	return -1
}

func translateClass(body string) string {
	var b strings.Builder
	b.WriteByte('[')
	if strings.HasPrefix(body, "!") || strings.HasPrefix(body, "^") {
		b.WriteByte('^')
		body = body[1:]
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			if i+1 < len(body) {
				i++
				b.WriteString(regexp.QuoteMeta(string(body[i])))
			}
		case '[', ']', '^':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(']')
	return b.String()
}

// compileChain builds the matcher chain for one pattern. Consecutive "**"
// segments collapse into a single recursive node.
func compileChain(p pattern) (Matcher, error) {
	var nodes []Matcher
	for _, seg := range p.segments {
		if seg == "**" {
			if len(nodes) > 0 {
				if _, ok := nodes[len(nodes)-1].(*recursiveMatcher); ok {
					continue
				}
			}
			nodes = append(nodes, &recursiveMatcher{negating: p.negating})
			continue
		}
		m, err := compileSegment(seg, p.negating)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, m)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("glob: empty pattern")
	}
	for i := len(nodes) - 2; i >= 0; i-- {
		switch n := nodes[i].(type) {
		case *segmentMatcher:
			n.children = []Matcher{nodes[i+1]}
		case *recursiveMatcher:
			n.children = []Matcher{nodes[i+1]}
		}
	}
	return nodes[0], nil
}

// compile builds the root matcher list, preserving declaration order.
func compile(patterns []pattern) ([]Matcher, error) {
	roots := make([]Matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := compileChain(p)
		if err != nil {
			return nil, err
		}
		roots = append(roots, m)
	}
	return roots, nil
}
