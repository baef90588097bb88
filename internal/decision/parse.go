package decision

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const numberExpr = `(\d+(?:[.,]\d+)?)(?:\s*[x×*·]\s*10\s*\^\s*([+-]?\d+)|\s*\^\s*([+-]?\d+)|[eE]([+-]?\d+))?`

var (
	// 10n with a single digit n and no caret, e.g. "<105" for "<10^5". "100" is left alone.
	bareExponent = regexp.MustCompile(`(^|[^0-9^.,])10([1-9])([^0-9]|$)`)
	superscript  = regexp.MustCompile(`10([⁻⁺]?[⁰¹²³⁴⁵⁶⁷⁸⁹]+)`)
	parenthesis  = regexp.MustCompile(`\(([^)]*)\)`)

	numberPattern     = regexp.MustCompile(numberExpr)
	comparedNumber    = regexp.MustCompile(`(<=|>=|=<|=>|≤|≥|<|>)?\s*` + numberExpr)
	rangePattern      = regexp.MustCompile(`^\s*` + numberExpr + `\s*(<=|=<|≤|<)\s*[a-zA-Z]*\s*(<=|=<|≤|<)\s*` + numberExpr)
	unitAfterNumber   = regexp.MustCompile(numberExpr + `\s*([A-Za-zµμ%][^\s()]*(?:\s*/\s*[^\s()]+)?)`)
	unitLike          = regexp.MustCompile(`(?i)^(?:ufc|cfu|mpn|ufp|pfu|mg|µg|μg|ug|ng|g|kg|ml|l|ppm|ppb|%)(?:\s*/\s*\S+)?$`)
	surfaceUnitFamily = regexp.MustCompile(`(?i)cm2|cm²|/cm`)
	foodUnitFamily    = regexp.MustCompile(`(?i)/g\b|/ml\b`)
)

var superscriptDigits = strings.NewReplacer(
	"⁰", "0", "¹", "1", "²", "2", "³", "3", "⁴", "4",
	"⁵", "5", "⁶", "6", "⁷", "7", "⁸", "8", "⁹", "9",
	"⁻", "-", "⁺", "+",
)

// normalizeSuperscripts rewrites 10ⁿ to 10^n.
func normalizeSuperscripts(s string) string {
	return superscript.ReplaceAllStringFunc(s, func(m string) string {
		return "10^" + superscriptDigits.Replace(strings.TrimPrefix(m, "10"))
	})
}

// normalizePowers rewrites 10ⁿ and bare 10n forms to 10^n. Limit text only:
// a measured "105" is one hundred and five.
func normalizePowers(s string) string {
	s = normalizeSuperscripts(s)
	// matches consume their trailing rune, so adjacent forms need another pass
	for i := 0; i < 4; i++ {
		next := bareExponent.ReplaceAllString(s, "${1}10^${2}${3}")
		if next == s {
			break
		}
		s = next
	}
	return s
}

// prepareLimit drops parenthesised unit text and normalizes powers.
func prepareLimit(s string) string {
	return normalizePowers(parenthesis.ReplaceAllString(s, " "))
}

// numberValue evaluates the submatches of numberExpr starting at offset.
func numberValue(m []string, offset int) (float64, bool) {
	mantissa, err := strconv.ParseFloat(strings.ReplaceAll(m[offset], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	exp := func(s string) (float64, bool) {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
		return float64(n), err == nil
	}
	switch {
	case m[offset+1] != "":
		e, ok := exp(m[offset+1])
		return mantissa * math.Pow(10, e), ok
	case m[offset+2] != "":
		e, ok := exp(m[offset+2])
		return math.Pow(mantissa, e), ok
	case m[offset+3] != "":
		e, ok := exp(m[offset+3])
		return mantissa * math.Pow(10, e), ok
	}
	return mantissa, true
}

type bound struct {
	value     float64
	inclusive bool
}

// parseUpper reads a satisfactory limit such as "<10^2", "≤ 1" or a bare "100".
func parseUpper(text string) (bound, bool) {
	m := comparedNumber.FindStringSubmatch(prepareLimit(text))
	if m == nil {
		return bound{}, false
	}
	v, ok := numberValue(m, 2)
	if !ok {
		return bound{}, false
	}
	switch m[1] {
	case "", "<":
		return bound{value: v}, true
	case "<=", "=<", "≤":
		return bound{value: v, inclusive: true}, true
	default:
		return bound{}, false
	}
}

// parseLower reads an unsatisfactory limit such as "≥ 500", "> 10" or a bare "10^3".
func parseLower(text string) (bound, bool) {
	m := comparedNumber.FindStringSubmatch(prepareLimit(text))
	if m == nil {
		return bound{}, false
	}
	v, ok := numberValue(m, 2)
	if !ok {
		return bound{}, false
	}
	switch m[1] {
	case "", ">=", "=>", "≥":
		return bound{value: v, inclusive: true}, true
	case ">":
		return bound{value: v}, true
	default:
		return bound{}, false
	}
}

type interval struct {
	min, max     float64
	minInclusive bool
	maxInclusive bool
}

func (iv interval) contains(v float64) bool {
	lowOK := v > iv.min || (iv.minInclusive && v == iv.min)
	highOK := v < iv.max || (iv.maxInclusive && v == iv.max)
	return lowOK && highOK
}

// parseRange reads "a ≤ x < b" forms, else any two numbers as [a, b).
func parseRange(text string) (interval, bool) {
	s := prepareLimit(text)
	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lo, ok1 := numberValue(m, 1)
		hi, ok2 := numberValue(m, 7)
		if ok1 && ok2 {
			return interval{
				min:          lo,
				max:          hi,
				minInclusive: m[5] != "<",
				maxInclusive: m[6] != "<",
			}, true
		}
	}
	all := numberPattern.FindAllStringSubmatch(s, 2)
	if len(all) < 2 {
		return interval{}, false
	}
	lo, ok1 := numberValue(all[0], 1)
	hi, ok2 := numberValue(all[1], 1)
	if !ok1 || !ok2 {
		return interval{}, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return interval{min: lo, max: hi, minInclusive: true}, true
}

type measurement struct {
	value float64
	// qualifiers are reported as evidence; comparisons use value as written
	below bool
	above bool
}

// parseMeasured takes the number after a leading "<", else the first number.
func parseMeasured(result string) (measurement, bool) {
	s := strings.TrimSpace(normalizeSuperscripts(result))
	var out measurement
	switch {
	case strings.HasPrefix(s, "<"), strings.HasPrefix(s, "≤"):
		out.below = true
	case strings.HasPrefix(s, ">"), strings.HasPrefix(s, "≥"):
		out.above = true
	}
	m := numberPattern.FindStringSubmatch(s)
	if m == nil {
		return measurement{}, false
	}
	v, ok := numberValue(m, 1)
	if !ok {
		return measurement{}, false
	}
	out.value = v
	return out, true
}

// limitUnit is the parenthesised unit of a limit, else the unit trailing its first number.
func limitUnit(text string) string {
	for _, m := range parenthesis.FindAllStringSubmatch(text, -1) {
		if u := strings.TrimSpace(m[1]); isUnit(u) {
			return u
		}
	}
	return trailingUnit(normalizePowers(parenthesis.ReplaceAllString(text, " ")))
}

// trailingUnit is the unit written right after the first number of s.
func trailingUnit(s string) string {
	m := unitAfterNumber.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	u := strings.TrimSpace(m[len(m)-1])
	if !isUnit(u) {
		return ""
	}
	return u
}

func isUnit(u string) bool {
	if u == "" {
		return false
	}
	return unitLike.MatchString(u) || (strings.Contains(u, "/") && !strings.ContainsAny(u, "0123456789 ")) || surfaceUnitFamily.MatchString(u)
}

func normalizeUnit(u string) string {
	u = strings.ToLower(u)
	return strings.NewReplacer(" ", "", ".", "").Replace(u)
}

type unitFamily string

const (
	familySurface unitFamily = "surface-area (per cm²)"
	familyFood    unitFamily = "mass/volume (per g or ml)"
)

func familyOf(u string) unitFamily {
	switch {
	case surfaceUnitFamily.MatchString(u):
		return familySurface
	case foodUnitFamily.MatchString(u):
		return familyFood
	}
	return ""
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
