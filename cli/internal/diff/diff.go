// Package diff renders unified diffs of proposals for preview output. The
// rendering is display-only; safety validation and apply both work from whole
// file contents, never from a diff.
package diff

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified returns a unified diff from old to new content, labeled with path
// on both sides. Identical contents return "".
func Unified(path, old, new string) string {
	if old == new {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		// The string writer cannot fail; keep the preview usable anyway.
		return ""
	}
	return text
}

// Stat returns the +added/-deleted line counts from old to new.
func Stat(old, new string) (added, deleted int) {
	matcher := difflib.NewMatcher(difflib.SplitLines(old), difflib.SplitLines(new))
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'i':
			added += op.J2 - op.J1
		case 'd':
			deleted += op.I2 - op.I1
		case 'r':
			added += op.J2 - op.J1
			deleted += op.I2 - op.I1
		}
	}
	return added, deleted
}

// StatLine formats a Stat result as "+N -M".
func StatLine(old, new string) string {
	added, deleted := Stat(old, new)
	return fmt.Sprintf("+%d -%d", added, deleted)
}
