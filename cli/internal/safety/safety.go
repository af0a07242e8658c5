// Package safety checks each proposal's diff magnitude against the limits
// implied by the session intent. A narrow instruction ("rename x") must not
// let the model silently delete half the file; an explicit rewrite is
// unlimited. Blocked proposals are excluded from the eligible set with a
// surfaced reason, never silently dropped.
package safety

import (
	"github.com/pmezard/go-difflib/difflib"

	"redraft/cli/internal/intent"
	"redraft/cli/internal/proposal"
)

// BlockedReason is the user-facing annotation on a blocked proposal.
const BlockedReason = "Change exceeds requested scope"

// Verdict is the outcome of checking one proposal. Verdicts are transient and
// recomputed on every validation pass.
type Verdict struct {
	ProposalID      string
	Path            string
	Blocked         bool
	Reason          string
	DeletedLines    int
	DeletedFraction float64
}

// limit is the block threshold for one intent category. A proposal is blocked
// when deleted lines exceed maxLines OR the deleted fraction exceeds maxFraction.
type limit struct {
	maxLines    int
	maxFraction float64
}

// limits per intent. FullFileRewrite is absent: unlimited.
var limits = map[intent.Intent]limit{
	intent.TextReplacement: {maxLines: 50, maxFraction: 0.30},
	intent.SymbolRename:    {maxLines: 50, maxFraction: 0.30},
	intent.ScopedEdit:      {maxLines: 200, maxFraction: 0.20},
}

// Check validates one proposal against the intent's limits, comparing the
// old content with the proposed replacement.
func Check(p proposal.Proposal, in intent.Intent, oldContent string) Verdict {
	deleted, fraction := deletion(oldContent, p.Content)
	v := Verdict{
		ProposalID:      p.ID,
		Path:            p.Path,
		DeletedLines:    deleted,
		DeletedFraction: fraction,
	}
	lim, bounded := limits[in]
	if !bounded {
		return v
	}
	if deleted > lim.maxLines || fraction > lim.maxFraction {
		v.Blocked = true
		v.Reason = BlockedReason
	}
	return v
}

// CheckAll validates every proposal and returns the eligible subset plus the
// full verdict list (one per proposal, in order). oldContent maps path to the
// session's current content for that file.
func CheckAll(proposals []proposal.Proposal, in intent.Intent, oldContent map[string]string) ([]proposal.Proposal, []Verdict) {
	eligible := make([]proposal.Proposal, 0, len(proposals))
	verdicts := make([]Verdict, 0, len(proposals))
	for _, p := range proposals {
		v := Check(p, in, oldContent[p.Path])
		verdicts = append(verdicts, v)
		if !v.Blocked {
			eligible = append(eligible, p)
		}
	}
	return eligible, verdicts
}

// deletion computes how many of the old lines do not survive into the new
// content, and that count as a fraction of the old line count. Empty old
// content (new file) deletes nothing.
func deletion(oldContent, newContent string) (lines int, fraction float64) {
	oldLines := splitLines(oldContent)
	if len(oldLines) == 0 {
		return 0, 0
	}
	newLines := splitLines(newContent)
	matcher := difflib.NewMatcher(oldLines, newLines)
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'd' || op.Tag == 'r' {
			lines += op.I2 - op.I1
		}
	}
	return lines, float64(lines) / float64(len(oldLines))
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := difflib.SplitLines(content)
	// SplitLines appends a terminator-only final element for trailing newlines;
	// drop it so line counts match what a reader would count.
	if n := len(lines); n > 0 && lines[n-1] == "\n" {
		lines = lines[:n-1]
	}
	return lines
}
