// Package intent classifies an edit instruction into one of four categories
// that bound how large a proposed change may be. Classification is a pure
// string match with no model call: every size-limit decision downstream
// depends on it, so it must be instant and deterministic.
package intent

import "strings"

// Intent is the inferred edit category. The zero value is ScopedEdit, the
// default when no stronger signal is present.
type Intent int

const (
	// ScopedEdit is the default: a bounded change somewhere in the file.
	ScopedEdit Intent = iota
	// TextReplacement swaps one piece of text for another ("replace X with Y").
	TextReplacement
	// SymbolRename renames an identifier ("rename", "call it").
	SymbolRename
	// FullFileRewrite regenerates entire files; size limits do not apply.
	FullFileRewrite
)

// String returns the category name used in display and trace output.
func (i Intent) String() string {
	switch i {
	case TextReplacement:
		return "text-replacement"
	case SymbolRename:
		return "symbol-rename"
	case FullFileRewrite:
		return "full-file-rewrite"
	default:
		return "scoped-edit"
	}
}

// Phrase returns a short verb phrase used when rebuilding an instruction for
// intent reuse. Deterministic per category.
func (i Intent) Phrase() string {
	switch i {
	case TextReplacement:
		return "the same text replacement"
	case SymbolRename:
		return "the same rename"
	case FullFileRewrite:
		return "the same rewrite"
	default:
		return "the same edit"
	}
}

var (
	renameMarkers  = []string{"rename", "call it"}
	rewriteMarkers = []string{"rewrite", "refactor", "regenerate"}
)

// Classify maps an instruction to an Intent. Rename verbs win as
// SymbolRename, "replace X with Y" / "change X to Y" as TextReplacement, and
// explicit rewrite verbs as FullFileRewrite. When both restrictive and
// rewrite language appear, the restrictive category wins unless the rewrite
// verb is primary: it occurs earlier in the instruction than any restrictive
// marker. Anything else is ScopedEdit.
func Classify(instruction string) Intent {
	text := strings.ToLower(instruction)

	restrictive := ScopedEdit
	restrictivePos := -1
	if pos := earliest(text, renameMarkers); pos >= 0 {
		restrictive, restrictivePos = SymbolRename, pos
	}
	if pos := replacementPos(text); pos >= 0 && (restrictivePos < 0 || pos < restrictivePos) {
		restrictive, restrictivePos = TextReplacement, pos
	}

	rewritePos := earliest(text, rewriteMarkers)

	switch {
	case rewritePos < 0 && restrictivePos < 0:
		return ScopedEdit
	case rewritePos < 0:
		return restrictive
	case restrictivePos < 0:
		return FullFileRewrite
	case rewritePos < restrictivePos:
		// Rewrite language is primary; it overrides the restrictive match.
		return FullFileRewrite
	default:
		return restrictive
	}
}

// replacementPos reports the position of "replace ... with" or
// "change ... to" phrasing, or -1. Both the verb and its preposition must be
// present so that "change the color" alone stays a scoped edit.
func replacementPos(text string) int {
	best := -1
	for _, pair := range [][2]string{{"replace", " with "}, {"change", " to "}} {
		verb := strings.Index(text, pair[0])
		if verb < 0 {
			continue
		}
		if !strings.Contains(text[verb+len(pair[0]):], pair[1]) {
			continue
		}
		if best < 0 || verb < best {
			best = verb
		}
	}
	return best
}

func earliest(text string, markers []string) int {
	best := -1
	for _, m := range markers {
		if pos := strings.Index(text, m); pos >= 0 && (best < 0 || pos < best) {
			best = pos
		}
	}
	return best
}
