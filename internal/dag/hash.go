package dag

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/zeebo/blake3"

	"lazyweave/internal/core"
	"lazyweave/internal/manifest"
)

// fieldHasher writes length-prefixed fields so that no two field sequences
// share an encoding.
type fieldHasher struct {
	h *blake3.Hasher
}

func newFieldHasher() *fieldHasher { return &fieldHasher{h: blake3.New()} }

func (f *fieldHasher) bytes(data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	_, _ = f.h.Write(n[:])
	_, _ = f.h.Write(data)
}

func (f *fieldHasher) string(s string) { f.bytes([]byte(s)) }

func (f *fieldHasher) int(n int) { f.string(strconv.Itoa(n)) }

func (f *fieldHasher) bool(b bool) { f.string(strconv.FormatBool(b)) }

func (f *fieldHasher) strings(ss []string) {
	f.int(len(ss))
	for _, s := range ss {
		f.string(s)
	}
}

// sortedStrings treats ss as a set.
func (f *fieldHasher) sortedStrings(ss []string) {
	cp := append([]string(nil), ss...)
	sort.Strings(cp)
	f.strings(cp)
}

func (f *fieldHasher) patterns(p manifest.Patterns) {
	f.strings(p.Include)
	f.strings(p.Exclude)
}

func (f *fieldHasher) sum() string { return hex.EncodeToString(f.h.Sum(nil)) }

// computeTaskDefHash hashes what determines an instance's behaviour. Env
// values and file contents are not part of the definition; they belong to
// the instance's manifest.
func computeTaskDefHash(t core.Task) TaskDefHash {
	f := newFieldHasher()
	f.string(t.Key)
	f.string(t.Name)
	f.string(t.Dir)
	f.string(t.Command)
	f.bool(t.Parallel)
	f.bool(t.CacheDisabled)

	f.patterns(t.Inputs.Inputs)
	f.patterns(t.Inputs.BaseInputs)
	f.sortedStrings(t.Inputs.EnvInputs)

	ups := append([]manifest.Upstream(nil), t.Inputs.Upstreams...)
	sort.Slice(ups, func(i, j int) bool { return ups[i].Key < ups[j].Key })
	f.int(len(ups))
	for _, u := range ups {
		f.string(u.Key)
		f.bool(u.InheritsInput)
		f.bool(u.UsesOutput)
		f.patterns(u.Outputs)
	}
	return TaskDefHash(f.sum())
}
