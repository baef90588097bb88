package decision

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
)

// Service runs the engine and, where eligible, the semantic fallback.
type Service struct {
	engine   *Engine
	fallback *Fallback
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService wires the decision stage. fallback and m may be nil.
func NewService(engine *Engine, fallback *Fallback, m *metrics.Metrics, logger *slog.Logger) *Service {
	if engine == nil {
		engine = NewEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, fallback: fallback, metrics: m, logger: logger}
}

// Decide evaluates one reading against one catalog entry.
func (s *Service) Decide(ctx context.Context, reading entity.ParameterReading, entry entity.CatalogEntry) Decision {
	d := s.engine.Evaluate(reading.ResultText, reading.UnitText, entry.Limits)
	if s.fallback == nil || !Eligible(reading.ResultText, entry.Limits, d) {
		return d
	}
	if fd, ok := s.fallback.Decide(ctx, reading.ParameterName, reading.ResultText, reading.UnitText, entry.Limits, d); ok {
		return fd
	}
	return d
}

// Verdicts produces one verdict per matched reading, in order. Unmatched readings are skipped.
func (s *Service) Verdicts(ctx context.Context, matches []catalog.Match, categoryID string) []entity.ComplianceVerdict {
	out := make([]entity.ComplianceVerdict, 0, len(matches))
	for _, m := range matches {
		if !m.Matched() {
			continue
		}
		d := s.Decide(ctx, m.Reading, *m.Entry)
		s.metrics.Verdict(string(d.Band))
		s.logger.Debug("decision.verdict",
			"parameter", m.Reading.ParameterName,
			"band", d.Band,
			"category_id", categoryID,
		)
		out = append(out, entity.ComplianceVerdict{
			ParameterName:    m.Reading.ParameterName,
			ResultText:       m.Reading.ResultText,
			UnitText:         m.Reading.UnitText,
			AppliedLimitText: d.AppliedLimit,
			Band:             d.Band,
			IsCompliant:      d.Compliance(),
			Rationale:        d.Rationale,
			Evidence:         d.Evidence,
			CategoryID:       categoryID,
			MatchedEntry:     m.Entry.ParameterName,
			MatchedBy:        m.MatchedBy,
		})
	}
	return out
}
