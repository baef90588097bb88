package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/lab-compliance/constants"
)

var (
	// Any swab context forces a swab kind, whatever else the report mentions.
	swabPattern      = regexp.MustCompile(`(?i)\b(?:tampone|tamponi|superficie|superfici|piano di lavoro|attrezzatura|attrezzature|utensili|swabs?|surfaces?|work ?tops?|equipment|utensils?)\b|(?:ufc|cfu)\s*/\s*cm(?:2|²)`)
	personnelPattern = regexp.MustCompile(`(?i)\b(?:mani|operatore|operatori|personale|addetto|addetti|hands?|operators?|personnel|staff)\b`)
)

type kindGroup struct {
	kind    constants.SampleKind
	pattern *regexp.Regexp
}

// Scored when there is no swab context. Earlier groups win ties.
var matrixGroups = []kindGroup{
	{constants.SampleWater, regexp.MustCompile(`(?i)\b(?:acqua|acque|potabile|rete idrica|water|drinking)\b`)},
	{constants.SampleFoodItem, regexp.MustCompile(`(?i)\b(?:alimento|alimenti|alimentare|matrice alimentare|carne|carni|pesce|formaggio|formaggi|latte|gelato|gelati|insalata|prosciutto|salume|salumi|food|foodstuff|meat|cheese|ice cream)\b`)},
}

var productLabelPattern = regexp.MustCompile(`(?im)^[ \t]*(?:descrizione(?:\s+del)?\s+campione|campione|prodotto|sample\s+description|product|matrice)[ \t]*[:：][ \t]*(\S.*?)[ \t]*$`)

const maxProductRunes = 120

var tagPatterns = []struct {
	tag     string
	pattern *regexp.Regexp
}{
	{"ready-to-eat", regexp.MustCompile(`(?i)\b(?:pronto al consumo|pronti al consumo|ready[- ]to[- ]eat|rte)\b`)},
	{"raw", regexp.MustCompile(`(?i)\b(?:crudo|cruda|crudi|crude|raw)\b`)},
	{"frozen", regexp.MustCompile(`(?i)\b(?:congelato|congelata|congelati|surgelato|surgelata|surgelati|frozen)\b`)},
	{"allergen", regexp.MustCompile(`(?i)\b(?:allergene|allergeni|allergens?|glutine|gluten|lattosio|lactose)\b`)},
	{"infant", regexp.MustCompile(`(?i)\b(?:prima infanzia|lattanti|infants?|baby food)\b`)},
}

// inferKind returns "" when nothing matches.
func inferKind(text string) constants.SampleKind {
	if swabPattern.MatchString(text) {
		if personnelPattern.MatchString(text) {
			return constants.SamplePersonnelSwab
		}
		return constants.SampleSurfaceSwab
	}
	best := constants.SampleKind("")
	bestHits := 0
	for _, g := range matrixGroups {
		if n := len(g.pattern.FindAllStringIndex(text, -1)); n > bestHits {
			best, bestHits = g.kind, n
		}
	}
	return best
}

// inferProduct returns the first labelled product line, clipped.
func inferProduct(text string) string {
	m := productLabelPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	p := strings.TrimSpace(m[1])
	if utf8.RuneCountInString(p) > maxProductRunes {
		p = string([]rune(p)[:maxProductRunes])
	}
	return p
}

func inferTags(text string) []string {
	var tags []string
	for _, t := range tagPatterns {
		if t.pattern.MatchString(text) {
			tags = append(tags, t.tag)
		}
	}
	return tags
}
