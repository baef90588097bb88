package decision

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/llm"
)

// Fallback asks the semantic capability for a band when no limit text could be parsed.
type Fallback struct {
	classifier llm.Classifier
	logger     *slog.Logger
}

// NewFallback returns nil when classifier is nil.
func NewFallback(classifier llm.Classifier, logger *slog.Logger) *Fallback {
	if classifier == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{classifier: classifier, logger: logger}
}

// Eligible reports whether hint leaves room for the fallback: nothing parsed,
// no unit block, a result and some limit text.
func Eligible(result string, limits entity.LimitSet, hint Decision) bool {
	return !hint.Parsed && !hint.UnitBlocked &&
		strings.TrimSpace(result) != "" && !limits.Empty()
}

type fallbackReply struct {
	Band         string `json:"band"`
	AppliedLimit string `json:"applied_limit"`
	Rationale    string `json:"rationale"`
}

// Decide returns the capability's decision and true only when the reply is
// schema-valid, names a known band and a non-empty applied limit.
func (f *Fallback) Decide(ctx context.Context, parameter, result, unit string, limits entity.LimitSet, hint Decision) (Decision, bool) {
	if f == nil {
		return Decision{}, false
	}
	prompt := llm.BuildDecisionPrompt(parameter, result, unit, limits, hint.Band, hint.Rationale)
	reply, err := f.classifier.Classify(ctx, prompt)
	if err != nil {
		f.logger.Warn("decision.fallback.failed", "parameter", parameter, "error", err)
		return Decision{}, false
	}

	raw := llm.ExtractJSON(reply)
	if raw == "" {
		f.logger.Warn("decision.fallback.no_json", "parameter", parameter)
		return Decision{}, false
	}
	if err := llm.ValidateJSONAgainstSchema(llm.DecisionJSONSchema(), []byte(raw)); err != nil {
		f.logger.Warn("decision.fallback.invalid", "parameter", parameter, "error", err)
		return Decision{}, false
	}
	var fr fallbackReply
	if err := json.Unmarshal([]byte(raw), &fr); err != nil {
		return Decision{}, false
	}
	band, ok := constants.ParseBand(fr.Band)
	applied := strings.TrimSpace(fr.AppliedLimit)
	if !ok || applied == "" {
		f.logger.Warn("decision.fallback.inconsistent", "parameter", parameter, "band", fr.Band)
		return Decision{}, false
	}

	rationale := strings.TrimSpace(fr.Rationale)
	if rationale == "" {
		rationale = "semantic reading of the limit text"
	}
	evidence := append([]string{}, hint.Evidence...)
	evidence = append(evidence, "fallback=semantic", "engine_band="+string(hint.Band))
	f.logger.Info("decision.fallback.accepted", "parameter", parameter, "band", band)
	return Decision{
		Band:         band,
		AppliedLimit: applied,
		Rationale:    rationale,
		Evidence:     evidence,
	}, true
}
