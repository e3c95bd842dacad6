package replyparse

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type fencedBlock struct {
	Language string
	Body     string
}

var markdown = goldmark.New()

// fencedBlocks returns every fenced code block of src in document order.
func fencedBlocks(src string) []fencedBlock {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var blocks []fencedBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var body bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(source))
		}
		blocks = append(blocks, fencedBlock{
			Language: strings.ToLower(string(fcb.Language(source))),
			Body:     body.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
