package config

import (
	"regexp"
	"strings"
)

// inheritPattern recognises scripts of the form
//
//	[NAME=value ...] [<pm> run [-T|--top-level]] lazy inherit [args...]
//
// by structure only; it is not a shell parser.
var inheritPattern = regexp.MustCompile(`^((?:\w+=\S* )*)(?:\S+ run(?: -T| --top-level)? )?lazy inherit($| .*$)`)

// InheritMatch is the parsed form of a "lazy inherit" script.
type InheritMatch struct {
	EnvVars   string
	ExtraArgs string
}

// ExtractInheritMatch reports whether command invokes "lazy inherit" and
// returns the inline env assignments and trailing arguments around it.
func ExtractInheritMatch(command string) (InheritMatch, bool) {
	m := inheritPattern.FindStringSubmatch(command)
	if m == nil {
		return InheritMatch{}, false
	}
	return InheritMatch{
		EnvVars:   strings.TrimSpace(m[1]),
		ExtraArgs: strings.TrimSpace(m[2]),
	}, true
}

// Expand substitutes baseCommand for the inherit invocation.
func (m InheritMatch) Expand(baseCommand string) string {
	return strings.TrimSpace(strings.Join([]string{m.EnvVars, baseCommand, m.ExtraArgs}, " "))
}
