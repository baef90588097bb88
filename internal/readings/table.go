package readings

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

var (
	columnSplit = regexp.MustCompile(`\t+|\s*\|\s*|\s{2,}`)
	// a result cell holds a number or a qualitative outcome
	resultCell = regexp.MustCompile(`(?i)^(?:[<>≤≥]=?\s*)?\d|\b(?:non\s+rilevat[oa]|rilevat[oa]|assente|presente|not\s+detected|detected|absent|present|negativ[oe]|positiv[oe])\b`)
	headerRow  = regexp.MustCompile(`(?i)^(?:parametro|parameter|prova|analisi|analyte)$`)
)

// ParseTable reads whitespace- or pipe-separated rows of the form
// name | result | unit | method. Header rows, "Label:" lines and rows whose
// second cell is not a result are skipped.
func ParseTable(corpus string) []entity.ParameterReading {
	var out []entity.ParameterReading
	for _, line := range strings.Split(corpus, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "|")
		if line == "" {
			continue
		}
		cells := columnSplit.Split(strings.TrimSpace(line), -1)
		if len(cells) < 2 {
			continue
		}
		name := strings.TrimSpace(cells[0])
		if !hasLetter(name) || headerRow.MatchString(name) || strings.HasSuffix(name, ":") {
			continue
		}
		result := strings.TrimSpace(cells[1])
		if !resultCell.MatchString(result) {
			continue
		}
		r := entity.ParameterReading{ParameterName: name, ResultText: result}
		if len(cells) > 2 {
			r.UnitText = strings.TrimSpace(cells[2])
		}
		if len(cells) > 3 {
			r.MethodText = strings.TrimSpace(strings.Join(cells[3:], " "))
		}
		out = append(out, r)
	}
	return out
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
