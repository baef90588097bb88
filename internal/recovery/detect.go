// Package recovery detects garbled text-layer output and swaps in page OCR, or a
// light cleanup when OCR is unavailable.
package recovery

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minRunLength      = 4   // consecutive single-character tokens forming one run
	maxRuns           = 5   // more runs than this means letter-spaced extraction
	maxSingleRatio    = 0.3 // share of single-character tokens
	minTokensForRatio = 20  // ratio rule only applies above this many tokens
)

// Report explains a Detect decision.
type Report struct {
	Corrupted   bool    `json:"corrupted"`
	Reason      string  `json:"reason,omitempty"`
	Runs        int     `json:"runs"`
	Tokens      int     `json:"tokens"`
	SingleRatio float64 `json:"single_ratio"`
}

// Detect flags text whose tokens look like letter-by-letter extraction.
func Detect(text string) Report {
	tokens := strings.Fields(text)
	var singles, runs, runLen int
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) == 1 {
			singles++
			runLen++
			continue
		}
		if runLen >= minRunLength {
			runs++
		}
		runLen = 0
	}
	if runLen >= minRunLength {
		runs++
	}

	r := Report{Runs: runs, Tokens: len(tokens)}
	if len(tokens) > 0 {
		r.SingleRatio = float64(singles) / float64(len(tokens))
	}
	switch {
	case runs > maxRuns:
		r.Corrupted = true
		r.Reason = fmt.Sprintf("%d runs of %d+ single-character tokens", runs, minRunLength)
	case len(tokens) > minTokensForRatio && r.SingleRatio > maxSingleRatio:
		r.Corrupted = true
		r.Reason = fmt.Sprintf("single-character token ratio %.2f over %d tokens", r.SingleRatio, len(tokens))
	}
	return r
}
