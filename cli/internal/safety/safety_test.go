package safety

import (
	"fmt"
	"strings"
	"testing"

	"redraft/cli/internal/intent"
	"redraft/cli/internal/proposal"
)

// fileOf builds content of n distinct lines starting at first.
func fileOf(first, n int) string {
	var b strings.Builder
	for i := first; i < first+n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func check(t *testing.T, old, updated string, in intent.Intent) Verdict {
	t.Helper()
	p := proposal.Proposal{ID: "p1", Path: "a.go", Content: updated}
	return Check(p, in, old)
}

func TestCheck_largeDeletionBlockedForReplacement(t *testing.T) {
	t.Parallel()
	old := fileOf(0, 100)
	updated := fileOf(60, 40) // keeps the last 40 lines, deletes 60
	v := check(t, old, updated, intent.TextReplacement)
	if v.DeletedLines != 60 {
		t.Errorf("DeletedLines = %d, want 60", v.DeletedLines)
	}
	if !v.Blocked || v.Reason != BlockedReason {
		t.Errorf("verdict = %+v, want blocked with reason %q", v, BlockedReason)
	}
}

func TestCheck_sameDeletionAllowedForRewrite(t *testing.T) {
	t.Parallel()
	old := fileOf(0, 100)
	updated := fileOf(60, 40)
	v := check(t, old, updated, intent.FullFileRewrite)
	if v.Blocked {
		t.Errorf("rewrite intent must be unlimited, got %+v", v)
	}
}

func TestCheck_renameSharesReplacementLimits(t *testing.T) {
	t.Parallel()
	old := fileOf(0, 100)
	updated := fileOf(60, 40)
	if v := check(t, old, updated, intent.SymbolRename); !v.Blocked {
		t.Errorf("rename with 60%% deletion not blocked: %+v", v)
	}
}

func TestCheck_smallRenamePasses(t *testing.T) {
	t.Parallel()
	// 40-line file, 3 lines changed: the rename scenario.
	old := fileOf(0, 40)
	lines := strings.Split(strings.TrimRight(old, "\n"), "\n")
	lines[10] = "renamed 10"
	lines[11] = "renamed 11"
	lines[12] = "renamed 12"
	updated := strings.Join(lines, "\n") + "\n"
	v := check(t, old, updated, intent.SymbolRename)
	if v.Blocked {
		t.Errorf("3/40 deletion blocked: %+v", v)
	}
	if v.DeletedLines != 3 {
		t.Errorf("DeletedLines = %d, want 3", v.DeletedLines)
	}
}

func TestCheck_boundariesAreExclusive(t *testing.T) {
	t.Parallel()
	// Exactly 30% and exactly 50 lines are allowed; the limits are strict
	// greater-than.
	old := fileOf(0, 100)
	updated := fileOf(30, 70) // 30 deleted, 30%
	if v := check(t, old, updated, intent.TextReplacement); v.Blocked {
		t.Errorf("30%% exactly should pass: %+v", v)
	}

	old = fileOf(0, 400)
	updated = fileOf(50, 350) // 50 deleted, 12.5%
	if v := check(t, old, updated, intent.TextReplacement); v.Blocked {
		t.Errorf("50 lines exactly should pass: %+v", v)
	}
	updated = fileOf(51, 349) // 51 deleted
	if v := check(t, old, updated, intent.TextReplacement); !v.Blocked {
		t.Errorf("51 deleted lines should block: %+v", v)
	}
}

func TestCheck_scopedEditLimits(t *testing.T) {
	t.Parallel()
	old := fileOf(0, 2000)
	updated := fileOf(201, 1799) // 201 deleted, ~10%
	if v := check(t, old, updated, intent.ScopedEdit); !v.Blocked {
		t.Errorf("201 deleted lines should block a scoped edit: %+v", v)
	}

	old = fileOf(0, 600)
	updated = fileOf(150, 450) // 150 deleted, 25% > 20%
	if v := check(t, old, updated, intent.ScopedEdit); !v.Blocked {
		t.Errorf("25%% deletion should block a scoped edit: %+v", v)
	}

	old = fileOf(0, 1000)
	updated = fileOf(150, 850) // 150 deleted, 15%
	if v := check(t, old, updated, intent.ScopedEdit); v.Blocked {
		t.Errorf("15%%/150 lines should pass a scoped edit: %+v", v)
	}
}

func TestCheck_newFileNeverBlocked(t *testing.T) {
	t.Parallel()
	v := check(t, "", fileOf(0, 500), intent.TextReplacement)
	if v.Blocked || v.DeletedLines != 0 {
		t.Errorf("new file content blocked: %+v", v)
	}
}

func TestCheckAll_partitionsEligibleAndBlocked(t *testing.T) {
	t.Parallel()
	oldContent := map[string]string{
		"small.go": fileOf(0, 40),
		"big.go":   fileOf(0, 100),
	}
	proposals := []proposal.Proposal{
		{ID: "a", Path: "small.go", Content: oldContent["small.go"] + "extra\n"},
		{ID: "b", Path: "big.go", Content: fileOf(60, 40)},
	}
	eligible, verdicts := CheckAll(proposals, intent.TextReplacement, oldContent)
	if len(eligible) != 1 || eligible[0].ID != "a" {
		t.Errorf("eligible = %+v", eligible)
	}
	if len(verdicts) != 2 {
		t.Fatalf("verdicts = %+v", verdicts)
	}
	if verdicts[0].Blocked || !verdicts[1].Blocked {
		t.Errorf("verdicts = %+v", verdicts)
	}
}
