package proposal

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// fencedBlock is a fenced code block plus its labeling paragraph: the
// paragraph's plain text (the proposal summary) and the backtick-quoted
// tokens it carried (path candidates).
type fencedBlock struct {
	hint    string
	paths   []string
	lang    string
	content string
}

// extractBlocks walks the markdown AST and returns every closed fenced code
// block with its label, plus whether the no-op marker appears in prose. When
// the snapshot ends inside an unterminated fence (mid-stream), the trailing
// block is dropped; it is picked up once a later snapshot closes it.
func extractBlocks(source []byte) (blocks []fencedBlock, noOp bool) {
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Paragraph:
			if paragraphHasMarker(n, source) {
				noOp = true
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			var b fencedBlock
			if lang := n.Language(source); lang != nil {
				b.lang = string(lang)
			}
			var content bytes.Buffer
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				content.Write(seg.Value(source))
			}
			b.content = content.String()
			if prev, ok := n.PreviousSibling().(*ast.Paragraph); ok {
				b.hint = strings.TrimSpace(string(prev.Text(source)))
				b.paths = codeSpans(prev, source)
			}
			blocks = append(blocks, b)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	}
	_ = ast.Walk(root, walker)

	if tailUnterminated(source) && len(blocks) > 0 {
		blocks = blocks[:len(blocks)-1]
	}
	return blocks, noOp
}

// codeSpans returns the text of every inline code span in the paragraph, in
// order. The file path label is a backtick-quoted token, which goldmark
// represents as a CodeSpan node.
func codeSpans(p *ast.Paragraph, source []byte) []string {
	var spans []string
	for child := p.FirstChild(); child != nil; child = child.NextSibling() {
		if cs, ok := child.(*ast.CodeSpan); ok {
			spans = append(spans, strings.TrimSpace(string(cs.Text(source))))
		}
	}
	return spans
}

// paragraphHasMarker reports whether any line of the paragraph equals NoOpMarker.
func paragraphHasMarker(p *ast.Paragraph, source []byte) bool {
	for _, line := range strings.Split(string(p.Text(source)), "\n") {
		if strings.TrimSpace(line) == NoOpMarker {
			return true
		}
	}
	return false
}

// tailUnterminated reports whether the source ends inside an open backtick
// fence. A fence only closes on a backtick run at least as long as its
// opener's, so shorter runs inside a longer fence are content, not
// delimiters.
func tailUnterminated(source []byte) bool {
	open := 0 // backtick run length of the fence we are inside, 0 when outside
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		run := 0
		for run < len(trimmed) && trimmed[run] == '`' {
			run++
		}
		if run < 3 {
			continue
		}
		switch {
		case open == 0:
			open = run
		case run >= open:
			open = 0
		}
	}
	return open > 0
}
