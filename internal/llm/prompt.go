package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// MaxCorpusRunes caps how much report text goes into a single prompt.
const MaxCorpusRunes = 6000

// NoneAnswer is the sentinel a model returns when no candidate fits.
const NoneAnswer = "none"

// BuildProfilePrompt asks for the sample kind and product of a report.
func BuildProfilePrompt(corpus string) string {
	parts := []string{
		"You read laboratory test reports (food safety, microbiology, allergens).",
		"Identify what was sampled. Return ONLY a JSON object with keys:",
		`"sample_kind" (one of: ` + strings.Join(constants.SampleKindStrings(), ", ") + `),`,
		`"product" (the sampled product or matrix, empty if not stated),`,
		`"description" (a short free-text description of the sample).`,
		"Environmental surfaces, utensils and equipment are surface-swab; hands or operators are personnel-swab.",
		"",
		"Report text:",
		clip(corpus),
	}
	return strings.Join(parts, "\n")
}

// BuildCategoryPrompt asks to pick one of the numbered candidate categories.
func BuildCategoryPrompt(product, description string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Pick the regulatory food category that applies to this laboratory sample.\n")
	if product != "" {
		b.WriteString("Product: " + product + "\n")
	}
	if description != "" {
		b.WriteString("Description: " + description + "\n")
	}
	b.WriteString("\nCandidate categories:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("\nAnswer with the number of the best candidate or its exact name. ")
	b.WriteString("Answer \"" + NoneAnswer + "\" if no candidate applies. Output nothing else.")
	return b.String()
}

// BuildEquivalencePrompt asks whether two parameter names denote the same analyte.
func BuildEquivalencePrompt(a, b string) string {
	return "Do these two laboratory parameter names refer to the same analyte or microorganism?\n" +
		"A: " + a + "\nB: " + b + "\n" +
		"Consider synonyms, abbreviations and Italian/English variants. Answer only \"yes\" or \"no\"."
}

// BuildReadingsPrompt asks for the parameter table of a report as JSON.
func BuildReadingsPrompt(corpus string) string {
	parts := []string{
		"Extract every tested parameter from this laboratory report.",
		"Return ONLY a JSON array. Each element is an object with keys:",
		`"parameter_name", "result_text", "unit_text", "method_text".`,
		"Copy values exactly as printed (keep symbols such as <, ≤, 10^2, \"Assente\", \"Non rilevato\").",
		"Use an empty string for a missing value. Do not merge or deduplicate rows.",
		"",
		"Report text:",
		clip(corpus),
	}
	return strings.Join(parts, "\n")
}

// BuildDecisionPrompt asks for a band when the limits are free text the engine could not parse.
// hintBand and hintRationale are the deterministic engine's own result and must be respected.
func BuildDecisionPrompt(parameter, result, unit string, limits entity.LimitSet, hintBand constants.Band, hintRationale string) string {
	var b strings.Builder
	b.WriteString("Classify a laboratory result against its limits.\n")
	fmt.Fprintf(&b, "Parameter: %s\nResult: %s\nUnit: %s\n", parameter, result, unit)
	fmt.Fprintf(&b, "Satisfactory limit: %s\nAcceptable limit: %s\nUnsatisfactory limit: %s\n",
		orDash(limits.Satisfactory), orDash(limits.Acceptable), orDash(limits.Unsatisfactory))
	fmt.Fprintf(&b, "\nAuthoritative hint from the rule engine: band=%s; %s\n", hintBand, hintRationale)
	b.WriteString("Do not contradict the hint unless the limit text states a rule the engine could not read. ")
	b.WriteString("Never compare values in different units.\n")
	b.WriteString(`Return ONLY a JSON object: {"band": "satisfactory|acceptable|unsatisfactory|undetermined", "applied_limit": "<limit text used>", "rationale": "<one sentence>"}`)
	return b.String()
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= MaxCorpusRunes {
		return s
	}
	return string(r[:MaxCorpusRunes])
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
