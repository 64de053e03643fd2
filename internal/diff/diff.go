// Package diff computes line diffs between document revisions for display.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line kinds.
const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// MaxDiffLines bounds the combined input size TextDiffWithLimit will process.
const MaxDiffLines = 5000

type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// Hunk is a run of changed lines plus surrounding context. OldStart and
// NewStart are the 1-based positions of the first line on each side.
type Hunk struct {
	OldStart int    `json:"old_start"`
	NewStart int    `json:"new_start"`
	Lines    []Line `json:"lines"`
}

// Stats counts added and removed lines across hunks.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

type position struct {
	line     Line
	old, new int
}

// TextDiff returns the hunks that turn before into after, with DefaultContext
// lines of context. Identical inputs produce no hunks.
func TextDiff(before, after string) []Hunk {
	return TextDiffContext(before, after, DefaultContext)
}

// TextDiffContext is TextDiff with an explicit context size.
func TextDiffContext(before, after string, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	lines := diffLines(before, after)

	var hunks []Hunk
	i := 0
	for i < len(lines) {
		if lines[i].line.Type == LineContext {
			i++
			continue
		}
		start := max(0, i-context)
		end := i
		// extend while another change lies within 2*context of the last one
		for j := i; j < len(lines); j++ {
			if lines[j].line.Type != LineContext {
				end = j
				continue
			}
			if j-end > 2*context {
				break
			}
		}
		stop := min(len(lines), end+context+1)

		h := Hunk{OldStart: lines[start].old, NewStart: lines[start].new}
		for _, p := range lines[start:stop] {
			h.Lines = append(h.Lines, p.line)
		}
		hunks = append(hunks, h)
		i = stop
	}
	return hunks
}

// TextDiffWithLimit skips diffing inputs larger than maxLines combined and
// reports whether it did.
func TextDiffWithLimit(before, after string, maxLines int) ([]Hunk, bool) {
	if maxLines <= 0 {
		maxLines = MaxDiffLines
	}
	if lineCount(before)+lineCount(after) > maxLines {
		return nil, true
	}
	return TextDiff(before, after), false
}

// Summarize counts the added and removed lines in hunks.
func Summarize(hunks []Hunk) Stats {
	var s Stats
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				s.Added++
			case LineRemoved:
				s.Removed++
			}
		}
	}
	return s
}

func diffLines(before, after string) []position {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []position
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			p := position{old: oldLine, new: newLine}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				p.line = Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine}
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				p.line = Line{Type: LineRemoved, Text: text, OldLine: oldLine}
				oldLine++
			case diffmatchpatch.DiffInsert:
				p.line = Line{Type: LineAdded, Text: text, NewLine: newLine}
				newLine++
			}
			out = append(out, p)
		}
	}
	return out
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
