// Package markdown extracts header sections from Markdown files with goldmark.
package markdown

import (
	"bytes"
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.StructureExtractor = (*Extractor)(nil)

// Extractor turns Markdown headings into header elements. A section runs from
// its heading line to the line before the next heading of the same or a
// higher level.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{md: goldmark.New()}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "markdown"
}

// Supports reports whether path is a Markdown file.
func (e *Extractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return true
	}
	return false
}

type heading struct {
	line  int
	level int
	name  string
}

// Extract parses content and returns the document with one header element
// per heading. The first level-1 heading becomes the title.
func (e *Extractor) Extract(ctx context.Context, path string, content []byte) (*domain.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := e.md.Parser().Parse(text.NewReader(content))
	lineStarts := lineOffsets(content)

	var headings []heading
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		line := 1
		if h.Lines().Len() > 0 {
			line = lineAt(lineStarts, h.Lines().At(0).Start)
		}
		headings = append(headings, heading{
			line:  line,
			level: h.Level,
			name:  inlineText(h, content),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	lastLine := len(lines)
	if lastLine > 1 && lines[lastLine-1] == "" {
		lastLine--
	}

	elements := make([]domain.StructuralElement, 0, len(headings))
	title := ""
	for i, h := range headings {
		end := lastLine
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.line - 1
				break
			}
		}
		if end < h.line {
			end = h.line
		}
		body := strings.Join(lines[h.line-1:end], "\n")
		elements = append(elements, domain.StructuralElement{
			Type:        domain.ElementHeader,
			Name:        h.name,
			StartLine:   domain.IntPtr(h.line),
			EndLine:     domain.IntPtr(end),
			Level:       h.level,
			ContentHash: domain.HashContent(body),
		})
		if title == "" && h.level == 1 {
			title = h.name
		}
	}

	docID := filepath.ToSlash(path)
	return &domain.SourceDocument{
		DocID: docID,
		Path:  path,
		Text:  string(content),
		Structure: &domain.StructureModel{
			DocID:    docID,
			Format:   domain.FormatMarkdown,
			Elements: elements,
		},
		Metadata: domain.DocumentMetadata{
			Title:          title,
			RepositoryPath: docID,
			Format:         domain.FormatMarkdown,
		},
	}, nil
}

// lineOffsets returns the byte offset at which every line starts.
func lineOffsets(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt returns the 1-based line containing offset.
func lineAt(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
}

// inlineText concatenates the text of n's inline descendants.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
