package recovery

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/lab-compliance/internal/ocr"
)

// a gap of two or more spaces separates words in letter-spaced output
var reWordGap = regexp.MustCompile(` {2,}`)

const maxRepeatedSymbols = 3

// Cleanup repairs letter-spaced text without OCR: single-character runs are
// joined back into words, long runs of one symbol are shortened, and
// whitespace is normalized. Clean text stays clean.
func Cleanup(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "  ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		segments := reWordGap.Split(line, -1)
		for j, seg := range segments {
			segments[j] = joinSingleRuns(seg)
		}
		lines[i] = strings.Join(segments, " ")
	}
	return ocr.Normalize(collapseSymbols(strings.Join(lines, "\n")))
}

func joinSingleRuns(segment string) string {
	tokens := strings.Fields(segment)
	if len(tokens) < minRunLength {
		return strings.Join(tokens, " ")
	}
	out := make([]string, 0, len(tokens))
	var run []string
	flush := func() {
		if len(run) >= minRunLength {
			out = append(out, strings.Join(run, ""))
		} else {
			out = append(out, run...)
		}
		run = run[:0]
	}
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) == 1 {
			run = append(run, tok)
			continue
		}
		flush()
		out = append(out, tok)
	}
	flush()
	return strings.Join(out, " ")
}

// collapseSymbols shortens runs of one repeated punctuation rune ("........") to three.
func collapseSymbols(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	count := 0
	for _, r := range s {
		if r == prev && !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			count++
			if count > maxRepeatedSymbols {
				continue
			}
		} else {
			prev = r
			count = 1
		}
		b.WriteRune(r)
	}
	return b.String()
}
