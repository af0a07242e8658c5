// Package prompt builds the system and user prompts for an edit session. The
// system prompt pins the output convention the proposal parser relies on:
// one labeling paragraph with the path in backticks, then a fenced block with
// the complete file content, or the no-op marker when nothing should change.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"redraft/cli/internal/fileio"
	"redraft/cli/internal/proposal"
)

const customPromptFilename = "system_prompt.txt"

// DefaultSystemPrompt instructs the model to emit whole-file replacements in
// the labeled-block convention. Used when no custom prompt file is present.
var DefaultSystemPrompt = `You are an automated code editor. You will receive an instruction and the full content of one or more files.

For every file that should change, output:
1. One paragraph naming the file path in backticks, e.g.: Updated ` + "`path/to/file.go`" + `:
2. A fenced code block containing the COMPLETE new file content.

Rules:
- Always emit the entire file, never a diff, snippet, or elided fragment.
- Never use placeholder lines such as "..." to stand for unchanged code.
- Only touch the files you were given.
- If no change is needed, output the single line ` + proposal.NoOpMarker + ` instead of any code block.`

// System returns the system prompt. If stateDir/system_prompt.txt exists its
// trimmed content is used; a missing file falls back to the default, any
// other read error is returned.
func System(stateDir string) (string, error) {
	if stateDir == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(filepath.Join(stateDir, customPromptFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSystemPrompt, nil
		}
		return "", fmt.Errorf("read custom prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// User builds the user prompt: the instruction followed by every file
// snapshot in the same labeled-block form the model must produce.
func User(instruction string, files []fileio.Snapshot) string {
	var b strings.Builder
	b.WriteString("Instruction: ")
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n")
	for _, f := range files {
		fmt.Fprintf(&b, "\nCurrent content of `%s`:\n\n", f.Path)
		fence := fenceFor(f.Content)
		b.WriteString(fence)
		b.WriteString(f.Language)
		b.WriteString("\n")
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") && f.Content != "" {
			b.WriteString("\n")
		}
		b.WriteString(fence)
		b.WriteString("\n")
	}
	return b.String()
}

// fenceFor returns a backtick fence longer than any backtick run inside
// content, so embedded code fences cannot break the block.
func fenceFor(content string) string {
	longest := 0
	run := 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}
