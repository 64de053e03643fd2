package patch

import "strings"

// DefaultDirectives are the control sequences that can read or write files,
// run shell commands or rewire the tokenizer.
var DefaultDirectives = []string{
	`\input`,
	`\include`,
	`\includefrom`,
	`\inputfrom`,
	`\import`,
	`\subimport`,
	`\write`,
	`\immediate`,
	`\openout`,
	`\openin`,
	`\read`,
	`\readline`,
	`\catcode`,
	`\directlua`,
	`\luaexec`,
	`\ShellEscape`,
	`\lstinputlisting`,
	`\verbatiminput`,
}

// forbiddenPackages are checked as plain substrings of \usepackage arguments.
var forbiddenPackages = []string{"shellesc", "bashful", "pythontex"}

// Gate rejects text that carries denylisted directives.
type Gate struct {
	directives []string
}

// NewGate builds a gate over the given directives. An empty list selects
// DefaultDirectives.
func NewGate(directives []string) *Gate {
	if len(directives) == 0 {
		directives = DefaultDirectives
	}
	normalized := make([]string, 0, len(directives))
	for _, d := range directives {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if !strings.HasPrefix(d, `\`) {
			d = `\` + d
		}
		normalized = append(normalized, d)
	}
	return &Gate{directives: normalized}
}

// CheckContent returns a SecurityViolationError naming the first forbidden
// directive found in text.
func (g *Gate) CheckContent(text string) error {
	if d := g.find(text); d != "" {
		return &SecurityViolationError{Directive: d, Index: -1}
	}
	return nil
}

// CheckBatch inspects every replacement before any patch is applied.
func (g *Gate) CheckBatch(batch Batch) error {
	for i, p := range batch {
		if d := g.find(p.Replace); d != "" {
			return &SecurityViolationError{Directive: d, Index: i}
		}
	}
	return nil
}

func (g *Gate) find(text string) string {
	for _, d := range g.directives {
		if containsControlWord(text, d) {
			return d
		}
	}
	for _, pkg := range forbiddenPackages {
		if usesPackage(text, pkg) {
			return `\usepackage{` + pkg + `}`
		}
	}
	return ""
}

// containsControlWord reports whether word occurs as a complete control word:
// not escaped by a preceding backslash (as in a "\\" line break) and not
// followed by another letter (so \input does not match \inputenc).
func containsControlWord(text, word string) bool {
	for offset := 0; ; {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		pos := offset + i
		end := pos + len(word)
		if !isEscaped(text, pos) && (end >= len(text) || !isLetter(text[end])) {
			return true
		}
		offset = pos + 1
	}
}

func usesPackage(text, pkg string) bool {
	for offset := 0; ; {
		i := strings.Index(text[offset:], `\usepackage`)
		if i < 0 {
			return false
		}
		pos := offset + i
		rest := text[pos:]
		if close := strings.Index(rest, "}"); close > 0 && strings.Contains(rest[:close], pkg) {
			return true
		}
		offset = pos + 1
	}
}

func isEscaped(text string, pos int) bool {
	n := 0
	for j := pos - 1; j >= 0 && text[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '@'
}
