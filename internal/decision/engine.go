// Package decision turns a result and its limits into a compliance band.
package decision

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

var (
	absenceLimitTerms = []string{"absent", "assente", "assenza"}
	// order matters: "non rilevato" contains "rilevato"
	absencePhrases   = []string{"non rilevato", "non rilevata", "non presente", "not detected", "not present", "assente", "absent", "negativo", "negativa", "negative"}
	detectionPhrases = []string{"rilevato", "rilevata", "presente", "detected", "present", "positivo", "positiva", "positive"}
)

// Decision is the deterministic outcome for one reading.
type Decision struct {
	Band         constants.Band
	AppliedLimit string
	Rationale    string
	Evidence     []string
	// Parsed is false when no limit produced a bound or an absence rule.
	Parsed bool
	// UnitBlocked is set when the unit guard refused to compare.
	UnitBlocked bool
}

// Compliance derives isCompliant from the band.
func (d Decision) Compliance() *bool { return d.Band.Compliance() }

// Engine is stateless and safe for concurrent use.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Evaluate applies, in order: empty check, absence rule, unit guard, numeric banding.
func (e *Engine) Evaluate(resultText, resultUnit string, limits entity.LimitSet) Decision {
	result := strings.TrimSpace(resultText)
	if result == "" {
		return undetermined(limits, "no result reported")
	}

	if containsAny(strings.ToLower(limits.Satisfactory), absenceLimitTerms) {
		if d, ok := absenceDecision(result, limits); ok {
			return d
		}
	}

	measuredUnit := strings.TrimSpace(resultUnit)
	if measuredUnit == "" {
		measuredUnit = trailingUnit(normalizeSuperscripts(result))
	}
	if d, blocked := unitGuard(measuredUnit, limits); blocked {
		return d
	}

	return numericDecision(result, measuredUnit, limits)
}

func absenceDecision(result string, limits entity.LimitSet) (Decision, bool) {
	r := strings.ToLower(result)
	evidence := []string{"result=" + result, "rule=absence"}
	if p, ok := firstContained(r, absencePhrases); ok {
		return Decision{
			Band:         constants.BandSatisfactory,
			AppliedLimit: limits.Satisfactory,
			Rationale:    fmt.Sprintf("result %q indicates absence (%q), limit requires absence: %s", result, p, limits.Satisfactory),
			Evidence:     evidence,
			Parsed:       true,
		}, true
	}
	if p, ok := firstContained(r, detectionPhrases); ok {
		applied := limits.Unsatisfactory
		if strings.TrimSpace(applied) == "" {
			applied = limits.Satisfactory
		}
		return Decision{
			Band:         constants.BandUnsatisfactory,
			AppliedLimit: applied,
			Rationale:    fmt.Sprintf("result %q indicates detection (%q), limit requires absence: %s", result, p, limits.Satisfactory),
			Evidence:     evidence,
			Parsed:       true,
		}, true
	}
	return Decision{}, false
}

// unitGuard blocks comparisons across unit families or between different units.
func unitGuard(measured string, limits entity.LimitSet) (Decision, bool) {
	if measured == "" {
		return Decision{}, false
	}
	mf := familyOf(measured)
	for _, text := range limitTexts(limits) {
		lu := limitUnit(text)
		if lu == "" {
			continue
		}
		lf := familyOf(lu)
		if mf != "" && lf != "" && mf != lf {
			d := undetermined(limits, fmt.Sprintf(
				"unit families are not convertible: result in %s is %s, limit in %s is %s",
				measured, mf, lu, lf))
			d.Evidence = append(d.Evidence, "measured_unit="+measured, "limit_unit="+lu)
			d.UnitBlocked = true
			return d, true
		}
		if normalizeUnit(lu) != normalizeUnit(measured) {
			d := undetermined(limits, fmt.Sprintf("result unit %s differs from limit unit %s", measured, lu))
			d.Evidence = append(d.Evidence, "measured_unit="+measured, "limit_unit="+lu)
			d.UnitBlocked = true
			return d, true
		}
	}
	return Decision{}, false
}

func numericDecision(result, unit string, limits entity.LimitSet) Decision {
	sat, hasSat := bound{}, false
	if !containsAny(strings.ToLower(limits.Satisfactory), absenceLimitTerms) {
		sat, hasSat = parseUpper(limits.Satisfactory)
	}
	unsat, hasUnsat := parseLower(limits.Unsatisfactory)
	acc, hasAcc := parseRange(limits.Acceptable)
	parsed := hasSat || hasUnsat || hasAcc

	m, ok := parseMeasured(result)
	if !ok {
		d := undetermined(limits, fmt.Sprintf("result %q is not numeric", result))
		d.Parsed = parsed
		return d
	}

	evidence := []string{"measured=" + formatNumber(m.value)}
	if unit != "" {
		evidence = append(evidence, "unit="+unit)
	}
	if m.below {
		evidence = append(evidence, "qualifier=<")
	}
	if m.above {
		evidence = append(evidence, "qualifier=>")
	}

	if hasSat {
		under := m.value < sat.value || (sat.inclusive && m.value == sat.value)
		if under {
			return Decision{
				Band:         constants.BandSatisfactory,
				AppliedLimit: limits.Satisfactory,
				Rationale:    fmt.Sprintf("%s is within the satisfactory limit %s", result, strings.TrimSpace(limits.Satisfactory)),
				Evidence:     append(evidence, "bound="+formatNumber(sat.value)),
				Parsed:       true,
			}
		}
	}

	if hasUnsat {
		over := m.value > unsat.value || (unsat.inclusive && m.value == unsat.value)
		if over {
			return Decision{
				Band:         constants.BandUnsatisfactory,
				AppliedLimit: limits.Unsatisfactory,
				Rationale:    fmt.Sprintf("%s reaches the unsatisfactory limit %s", result, strings.TrimSpace(limits.Unsatisfactory)),
				Evidence:     append(evidence, "bound="+formatNumber(unsat.value)),
				Parsed:       true,
			}
		}
	}

	if hasAcc && acc.contains(m.value) {
		return Decision{
			Band:         constants.BandAcceptable,
			AppliedLimit: limits.Acceptable,
			Rationale: fmt.Sprintf("%s is within the acceptable range %s: compliant, flagged as acceptable",
				result, strings.TrimSpace(limits.Acceptable)),
			Evidence: append(evidence, "range="+formatNumber(acc.min)+".."+formatNumber(acc.max)),
			Parsed:   true,
		}
	}

	reason := "no limit could be parsed"
	switch {
	case hasSat && !hasUnsat && !hasAcc:
		reason = fmt.Sprintf("%s exceeds the satisfactory limit %s and no unsatisfactory limit applies",
			result, strings.TrimSpace(limits.Satisfactory))
	case parsed:
		reason = fmt.Sprintf("%s falls in no declared band", result)
	}
	d := undetermined(limits, reason)
	d.Evidence = append(evidence, d.Evidence...)
	d.Parsed = parsed
	return d
}

func undetermined(limits entity.LimitSet, rationale string) Decision {
	return Decision{
		Band:         constants.BandUndetermined,
		AppliedLimit: strings.Join(limitTexts(limits), " | "),
		Rationale:    rationale + "; needs confirmation",
	}
}

func limitTexts(limits entity.LimitSet) []string {
	out := make([]string, 0, 3)
	for _, t := range []string{limits.Satisfactory, limits.Acceptable, limits.Unsatisfactory} {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	_, ok := firstContained(s, terms)
	return ok
}

func firstContained(s string, terms []string) (string, bool) {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return t, true
		}
	}
	return "", false
}
