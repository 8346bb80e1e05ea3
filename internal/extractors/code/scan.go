package code

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

var (
	classPattern = regexp.MustCompile(
		`^\s*(?:export\s+)?(?:default\s+)?(?:public\s+|private\s+|protected\s+|internal\s+)?` +
			`(?:abstract\s+|final\s+|static\s+|sealed\s+|data\s+)*(?:class|struct|interface|trait|module)\s+(\w+)`)

	functionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)`),
		regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`),
		regexp.MustCompile(`^\s*(?:public\s+|private\s+|internal\s+)?(?:override\s+)?(?:func|fun)\s+(\w+)`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:\([^)]*\)|\w+)\s*=>`),
		regexp.MustCompile(`^\s*(?:function\s+)?(\w+)\s*\(\)\s*\{`),
	}
)

// scanDeclarations finds declarations with line patterns. Each declaration
// ends on the last non-blank line before the next declaration indented at
// most as deep, or at the end of the file.
func scanDeclarations(lines []string) []declaration {
	type found struct {
		declaration
		indent int
	}
	var decls []found
	for i, line := range lines {
		kind, name := matchDeclaration(line)
		if name == "" {
			continue
		}
		decls = append(decls, found{
			declaration: declaration{kind: kind, name: name, start: i + 1},
			indent:      indentation(line),
		})
	}

	last := lastNonBlank(lines, len(lines))
	result := make([]declaration, len(decls))
	for i, d := range decls {
		end := last
		for _, next := range decls[i+1:] {
			if next.indent <= d.indent {
				end = lastNonBlank(lines, next.start-1)
				break
			}
		}
		if end < d.start {
			end = d.start
		}
		d.end = end
		result[i] = d.declaration
	}
	return result
}

func matchDeclaration(line string) (domain.ElementType, string) {
	if m := classPattern.FindStringSubmatch(line); m != nil {
		return domain.ElementClass, m[1]
	}
	for _, p := range functionPatterns {
		if m := p.FindStringSubmatch(line); m != nil {
			if isKeyword(m[1]) {
				continue
			}
			return domain.ElementFunction, m[1]
		}
	}
	return "", ""
}

// isKeyword filters control statements the shell pattern would match.
func isKeyword(name string) bool {
	switch name {
	case "if", "for", "while", "switch", "catch", "function", "return":
		return true
	}
	return false
}

// indentation counts leading whitespace, a tab as four columns.
func indentation(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// lastNonBlank returns the 1-based number of the last non-blank line among
// the first upTo lines, or 0.
func lastNonBlank(lines []string, upTo int) int {
	for i := upTo; i > 0; i-- {
		if strings.TrimSpace(lines[i-1]) != "" {
			return i
		}
	}
	return 0
}
