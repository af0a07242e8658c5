package diff

import (
	"strings"
	"testing"
)

func TestUnified_identicalContentIsEmpty(t *testing.T) {
	t.Parallel()
	if got := Unified("a.go", "same\n", "same\n"); got != "" {
		t.Errorf("Unified on identical content = %q, want empty", got)
	}
}

func TestUnified_labelsAndMarkers(t *testing.T) {
	t.Parallel()
	old := "one\ntwo\nthree\n"
	got := Unified("pkg/a.go", old, "one\nTWO\nthree\n")
	for _, want := range []string{"--- a/pkg/a.go", "+++ b/pkg/a.go", "-two", "+TWO", " one"} {
		if !strings.Contains(got, want) {
			t.Errorf("diff missing %q:\n%s", want, got)
		}
	}
}

func TestStat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		old, new    string
		added, del  int
	}{
		{"insert only", "a\nb\n", "a\nx\nb\n", 1, 0},
		{"delete only", "a\nb\nc\n", "a\nc\n", 0, 1},
		{"replace counts both", "a\nb\n", "a\nB\n", 1, 1},
		{"identical", "a\n", "a\n", 0, 0},
		{"new file", "", "a\nb\n", 2, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			added, deleted := Stat(tt.old, tt.new)
			if added != tt.added || deleted != tt.del {
				t.Errorf("Stat = +%d -%d, want +%d -%d", added, deleted, tt.added, tt.del)
			}
		})
	}
}

func TestStatLine(t *testing.T) {
	t.Parallel()
	if got := StatLine("a\nb\n", "a\nx\n"); got != "+1 -1" {
		t.Errorf("StatLine = %q, want +1 -1", got)
	}
}
