package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the type of a manifest record.
type Kind string

const (
	KindFile     Kind = "file"
	KindEnv      Kind = "env"
	KindUpstream Kind = "upstream"
	KindCommand  Kind = "command"
)

// commandRecordID names the single command record of a manifest.
const commandRecordID = "script"

// Record is one observed input.
type Record struct {
	Kind Kind
	ID   string
	Hash string
	// MTime is the file modification time in nanoseconds; zero for records
	// other than files.
	MTime int64
}

// Key identifies the record within a manifest.
func (r Record) Key() string { return string(r.Kind) + " " + r.ID }

func (r Record) line() string {
	if r.Kind == KindFile {
		return r.Key() + "\t" + r.Hash + "\t" + strconv.FormatInt(r.MTime, 10)
	}
	return r.Key() + "\t" + r.Hash
}

// Manifest is a canonical, sorted record set.
type Manifest struct {
	Records []Record
}

// New sorts records by key and drops duplicates, keeping the first.
func New(records []Record) *Manifest {
	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	out := sorted[:0]
	for i, r := range sorted {
		if i > 0 && r.Key() == sorted[i-1].Key() {
			continue
		}
		out = append(out, r)
	}
	return &Manifest{Records: out}
}

// Encode renders the manifest in its canonical text form.
func (m *Manifest) Encode() []byte {
	var buf bytes.Buffer
	for _, r := range m.Records {
		buf.WriteString(r.line())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// comparable renders the manifest without the mtime column.
func (m *Manifest) comparable() string {
	var b strings.Builder
	for _, r := range m.Records {
		b.WriteString(r.Key())
		b.WriteByte('\t')
		b.WriteString(r.Hash)
		b.WriteByte('\n')
	}
	return b.String()
}

// Files indexes the file records by root-relative path.
func (m *Manifest) Files() map[string]Record {
	out := make(map[string]Record)
	for _, r := range m.Records {
		if r.Kind == KindFile {
			out[r.ID] = r
		}
	}
	return out
}

// Digest summarises the manifest by key and hash.
func (m *Manifest) Digest() string {
	return hashString(digestDomainKey, m.comparable())
}

// Parse reads a manifest written by Encode.
func Parse(data []byte) (*Manifest, error) {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("manifest line %d: expected tab separated fields", lineNo)
		}
		kind, id, ok := strings.Cut(fields[0], " ")
		if !ok {
			return nil, fmt.Errorf("manifest line %d: missing record id", lineNo)
		}
		r := Record{Kind: Kind(kind), ID: id, Hash: fields[1]}
		if len(fields) > 2 && fields[2] != "" {
			mt, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("manifest line %d: bad mtime: %w", lineNo, err)
			}
			r.MTime = mt
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return New(records), nil
}
