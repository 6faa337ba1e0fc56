package config

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/zeebo/blake3"
)

// slugDigestLen is the number of hex digits of the name digest appended to
// a lossy slug.
const slugDigestLen = 16

// Slugify turns a task name into a file name unique to that name. Names made
// only of lower-case ASCII letters, digits and single inner dashes are used
// as is. Any other name is readable-slugged (camelCase boundaries and runs
// of other characters become a dash, lower case) and suffixed with a digest
// of the raw name after a '.', which no verbatim name contains:
// "test:unit" becomes "test-unit.<digest>" and never collides with
// "test-unit".
func Slugify(name string) string {
	base := slugBase(name)
	if base == name {
		return base
	}
	sum := blake3.Sum256([]byte(name))
	return base + "." + hex.EncodeToString(sum[:])[:slugDigestLen]
}

func slugBase(name string) string {
	var b strings.Builder
	pendingDash := false
	var prev rune
	for _, r := range name {
		alnum := r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
		if !alnum {
			pendingDash = b.Len() > 0
			prev = r
			continue
		}
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			pendingDash = true
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	if b.Len() == 0 {
		return "task"
	}
	return b.String()
}
