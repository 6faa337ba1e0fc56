package manifest

import (
	"fmt"
)

// ChangeType classifies a difference between two manifests.
type ChangeType int

const (
	Added ChangeType = iota
	Removed
	Modified
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "changed"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// Change is one record that differs between two manifests.
type Change struct {
	Type ChangeType
	Kind Kind
	ID   string
}

// Render formats the change for operators, e.g. "+ added file src/a.ts".
func (c Change) Render() string {
	sign := "±"
	switch c.Type {
	case Added:
		sign = "+"
	case Removed:
		sign = "-"
	}
	return fmt.Sprintf("%s %s %s %s", sign, c.Type, c.Kind, c.ID)
}

// Compare lists the records added, removed or changed from prev to next,
// sorted by record key. Only keys and hashes are compared. Both manifests
// are key-sorted by New, so a single merge pass suffices.
func Compare(prev, next *Manifest) []Change {
	var a, b []Record
	if prev != nil {
		a = prev.Records
	}
	if next != nil {
		b = next.Records
	}

	var changes []Change
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i].Key() < b[j].Key()):
			changes = append(changes, Change{Type: Removed, Kind: a[i].Kind, ID: a[i].ID})
			i++
		case i == len(a) || b[j].Key() < a[i].Key():
			changes = append(changes, Change{Type: Added, Kind: b[j].Kind, ID: b[j].ID})
			j++
		default:
			if a[i].Hash != b[j].Hash {
				changes = append(changes, Change{Type: Modified, Kind: b[j].Kind, ID: b[j].ID})
			}
			i++
			j++
		}
	}
	return changes
}

// PreviewLimit is the number of changes shown inline on a cache miss.
const PreviewLimit = 10

// RenderChanges renders every change and a preview bounded by PreviewLimit.
// When truncated, the preview ends with a pointer to diffPath.
func RenderChanges(changes []Change, diffPath string) (all []string, preview []string) {
	all = make([]string, len(changes))
	for i, c := range changes {
		all[i] = c.Render()
	}
	if len(all) <= PreviewLimit {
		return all, all
	}
	preview = append(append([]string{}, all[:PreviewLimit]...),
		fmt.Sprintf("... and %d more. See %s for full diff.", len(all)-PreviewLimit, diffPath))
	return all, preview
}
