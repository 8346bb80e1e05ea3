package chunker

import (
	"sort"
	"unicode"
	"unicode/utf8"
)

// token is one whitespace-delimited word of the document text. Its span runs
// from the word to the next word, so consecutive spans tile the text.
type token struct {
	word int
}

// tokenize returns the words of text in order.
func tokenize(text string) []token {
	var toks []token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		toks = append(toks, token{word: i})
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
	}
	return toks
}

// CountTokens returns the number of tokens the chunker counts in text.
func CountTokens(text string) int {
	return len(tokenize(text))
}

// layout indexes a document's text by token, line and page.
type layout struct {
	text       string
	toks       []token
	lineStarts []int
	pageStarts []int
}

func newLayout(text string) *layout {
	l := &layout{
		text:       text,
		toks:       tokenize(text),
		lineStarts: []int{0},
		pageStarts: []int{0},
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			if i+1 < len(text) {
				l.lineStarts = append(l.lineStarts, i+1)
			}
		case '\f':
			l.pageStarts = append(l.pageStarts, i+1)
		}
	}
	return l
}

func (l *layout) lineCount() int { return len(l.lineStarts) }

func (l *layout) pageCount() int { return len(l.pageStarts) }

// lineSpan returns the byte range of the inclusive 1-based line range.
func (l *layout) lineSpan(start, end int) (int, int) {
	from := l.lineStarts[start-1]
	to := len(l.text)
	if end < len(l.lineStarts) {
		to = l.lineStarts[end]
	}
	return from, to
}

// pageSpan returns the byte range of the 1-based page.
func (l *layout) pageSpan(page int) (int, int) {
	from := l.pageStarts[page-1]
	to := len(l.text)
	if page < len(l.pageStarts) {
		to = l.pageStarts[page]
	}
	return from, to
}

// firstToken returns the index of the first token whose word starts at or after offset.
func (l *layout) firstToken(offset int) int {
	return sort.Search(len(l.toks), func(i int) bool { return l.toks[i].word >= offset })
}

// spanStart is the first byte of token i's span.
func (l *layout) spanStart(i int) int {
	if i == 0 {
		return 0
	}
	return l.toks[i].word
}

// spanEnd is one past the last byte of token i's span.
func (l *layout) spanEnd(i int) int {
	if i+1 < len(l.toks) {
		return l.toks[i+1].word
	}
	return len(l.text)
}
