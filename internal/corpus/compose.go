// Package corpus merges extracted text fragments into the single text blob every later stage reads.
package corpus

import (
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// Separator is placed between non-empty fragments.
const Separator = "\n\n"

// Compose orders fragments by ordinal, trims them and joins the non-blank ones.
// The input slice is left untouched.
func Compose(fragments []entity.TextFragment) string {
	if len(fragments) == 0 {
		return ""
	}
	ordered := make([]entity.TextFragment, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Ordinal < ordered[j].Ordinal
	})

	parts := make([]string, 0, len(ordered))
	for _, f := range ordered {
		if s := strings.TrimSpace(f.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, Separator)
}

// FromPages turns per-page text into fragments labelled prefix:page-N.
func FromPages(prefix string, pages []string) []entity.TextFragment {
	out := make([]entity.TextFragment, 0, len(pages))
	for i, p := range pages {
		out = append(out, entity.TextFragment{
			SourceLabel: prefix + ":page-" + strconv.Itoa(i+1),
			Ordinal:     i + 1,
			Content:     p,
		})
	}
	return out
}
