// Package html extracts heading sections from HTML files.
package html

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.StructureExtractor = (*Extractor)(nil)

// Extractor renders HTML to plain text, one block per line group, and turns
// h1-h6 into header elements positioned on that text.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "html"
}

// Supports reports whether path is an HTML file.
func (e *Extractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// Extract parses content and returns the rendered text with one header
// element per heading. The <title> element, or else the first h1, becomes
// the title.
func (e *Extractor) Extract(ctx context.Context, path string, content []byte) (*domain.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	r := &renderer{}
	if body := findElement(root, atom.Body); body != nil {
		r.walk(body)
	} else {
		r.walk(root)
	}
	r.flush()

	title := ""
	if t := findElement(root, atom.Title); t != nil {
		title = collapse(textContent(t))
	}

	elements := make([]domain.StructuralElement, 0, len(r.headings))
	for i, h := range r.headings {
		end := len(r.lines)
		for _, next := range r.headings[i+1:] {
			if next.level <= h.level {
				end = next.line - 1
				break
			}
		}
		for end > h.line && r.lines[end-1] == "" {
			end--
		}
		body := strings.Join(r.lines[h.line-1:end], "\n")
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
	if title == "" {
		title = titleFromFilename(path)
	}

	text := strings.Join(r.lines, "\n")
	if text != "" {
		text += "\n"
	}

	docID := filepath.ToSlash(path)
	return &domain.SourceDocument{
		DocID: docID,
		Path:  path,
		Text:  text,
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

type heading struct {
	line  int
	level int
	name  string
}

// renderer accumulates text lines. Blocks are separated by a blank line.
type renderer struct {
	lines    []string
	headings []heading
	inline   strings.Builder
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.inline.WriteString(n.Data)
		return
	case html.ElementNode:
		if level := headingLevel(n.DataAtom); level > 0 {
			r.flush()
			name := collapse(textContent(n))
			if name != "" {
				line := r.block([]string{name})
				r.headings = append(r.headings, heading{line: line, level: level, name: name})
			}
			return
		}

		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg, atom.Head:
			return
		case atom.Pre:
			r.flush()
			r.block(strings.Split(strings.Trim(textContent(n), "\n"), "\n"))
			return
		case atom.P, atom.Li, atom.Td, atom.Th, atom.Blockquote, atom.Dt, atom.Dd, atom.Figcaption:
			r.flush()
			if text := collapse(textContent(n)); text != "" {
				r.block([]string{text})
			}
			return
		case atom.Br, atom.Div, atom.Section, atom.Article, atom.Tr, atom.Table, atom.Hr:
			r.flush()
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

// flush emits pending inline text as a block.
func (r *renderer) flush() {
	text := collapse(r.inline.String())
	r.inline.Reset()
	if text != "" {
		r.block([]string{text})
	}
}

// block appends lines as a new block and returns the 1-based line number
// of its first line.
func (r *renderer) block(lines []string) int {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	first := len(r.lines) + 1
	for _, l := range lines {
		r.lines = append(r.lines, strings.TrimRight(l, " \t\r"))
	}
	return first
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// textContent concatenates the text beneath n, skipping scripts and styles.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleFromFilename turns "release-notes_v2.html" into "release notes v2".
func titleFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
