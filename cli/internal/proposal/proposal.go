// Package proposal defines the per-file edit proposal and the parser that
// re-reads the full accumulated stream snapshot into proposals. Parsing is
// pure and idempotent: the same snapshot always yields the same proposals, so
// the caller can re-parse on every throttle tick without tracking deltas.
//
// Wire convention: one paragraph whose first backtick-quoted token is the
// file path, followed by a fenced code block carrying the complete new file
// content. Diffs and snippets are rejected because apply is whole-file
// replacement. A paragraph line equal to NoOpMarker is a valid
// empty-but-successful result, distinct from a parse failure.
package proposal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NoOpMarker is the machine-readable "no changes needed" line the model emits
// outside any code block.
const NoOpMarker = "NO-CHANGES-REQUIRED"

// Proposal is one file's candidate edit: the complete replacement content and
// a human-readable summary taken from the labeling paragraph. Proposals are
// recreated on every re-parse; identity across re-parses is the Path.
type Proposal struct {
	ID       string
	Path     string
	Content  string
	Summary  string
	Selected bool
}

// Rejection records a block that named a file but was not a well-formed
// proposal, with the reason it was excluded. Rejections are surfaced, never
// silently dropped.
type Rejection struct {
	Path   string
	Reason string
}

// Result is one parse pass over a snapshot.
type Result struct {
	Proposals  []Proposal
	Rejections []Rejection
	NoOp       bool
}

// Rejection reasons. These appear verbatim in diagnostics.
const (
	ReasonDiffBlock   = "diff blocks are not accepted; emit the complete file content"
	ReasonSnippet     = "content is a snippet, not the complete file"
	ReasonUnknownFile = "file is not part of this session"
	ReasonConflict    = "conflicting blocks for the same file in one response"
)

// elisionLines are lines that signal the model elided content instead of
// emitting the complete file.
var elisionLines = map[string]struct{}{
	"...":         {},
	"…":           {},
	"// ...":      {},
	"# ...":       {},
	"/* ... */":   {},
	"-- ...":      {},
	"<!-- ... -->": {},
}

// Parse re-parses the entire snapshot. files maps every session file path to
// its current content; blocks naming any other path are rejected. A block for
// a file with existing content must carry a complete body: elision lines mark
// it a snippet. Two closed blocks naming the same path with different content
// reject both (precedence would be a guess).
func Parse(snapshot string, files map[string]string) Result {
	blocks, noOp := extractBlocks([]byte(snapshot))

	var result Result
	result.NoOp = noOp

	type group struct {
		proposal Proposal
		conflict bool
	}
	byPath := make(map[string]*group)
	var order []string

	for _, b := range blocks {
		path := pathFromCandidates(b.paths)
		if path == "" {
			continue // unlabeled block: prose example, not a proposal
		}
		if b.lang == "diff" {
			result.Rejections = append(result.Rejections, Rejection{Path: path, Reason: ReasonDiffBlock})
			continue
		}
		old, known := files[path]
		if !known {
			result.Rejections = append(result.Rejections, Rejection{Path: path, Reason: ReasonUnknownFile})
			continue
		}
		if old != "" && hasElision(b.content) {
			result.Rejections = append(result.Rejections, Rejection{Path: path, Reason: ReasonSnippet})
			continue
		}
		p := Proposal{
			ID:       proposalID(path, b.content),
			Path:     path,
			Content:  b.content,
			Summary:  b.hint,
			Selected: true,
		}
		g, seen := byPath[path]
		if !seen {
			byPath[path] = &group{proposal: p}
			order = append(order, path)
			continue
		}
		if g.proposal.Content != p.Content {
			g.conflict = true
		}
	}

	for _, path := range order {
		g := byPath[path]
		if g.conflict {
			result.Rejections = append(result.Rejections, Rejection{Path: path, Reason: ReasonConflict})
			continue
		}
		result.Proposals = append(result.Proposals, g.proposal)
	}
	return result
}

// Reconcile carries selection flags from prev onto next, matching by path.
// Proposals new in next keep their default selection; selections for paths no
// longer present are dropped with them.
func Reconcile(prev, next []Proposal) []Proposal {
	if len(prev) == 0 {
		return next
	}
	selected := make(map[string]bool, len(prev))
	for _, p := range prev {
		selected[p.Path] = p.Selected
	}
	for i := range next {
		if sel, ok := selected[next[i].Path]; ok {
			next[i].Selected = sel
		}
	}
	return next
}

// proposalID is a stable content hash so identical re-parses produce
// identical proposals.
func proposalID(path, content string) string {
	sum := sha256.Sum256([]byte(path + "\x00" + content))
	return hex.EncodeToString(sum[:])[:12]
}

// pathFromCandidates picks the file path from the labeling paragraph's
// backtick-quoted tokens: the first one containing no spaces, so a quoted
// command like `go run main.go` in commentary is not mistaken for a path.
func pathFromCandidates(candidates []string) string {
	for _, c := range candidates {
		if c != "" && !strings.Contains(c, " ") {
			return c
		}
	}
	return ""
}

func hasElision(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if _, ok := elisionLines[strings.TrimSpace(line)]; ok {
			return true
		}
	}
	return false
}
