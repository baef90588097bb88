// Package readings turns a report corpus into parameter readings.
package readings

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/llm"
)

var errNoJSON = errors.New("no json in extraction reply")

// Extractor asks the structured extraction capability for the parameter table.
// Without a capability it falls back to the column parser in table.go.
type Extractor struct {
	classifier llm.Classifier
	logger     *slog.Logger
}

func NewExtractor(classifier llm.Classifier, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{classifier: classifier, logger: logger}
}

// Extract returns readings in document order; duplicates pass through.
// Capability and reply-shape failures wrap common.ErrCapability.
func (e *Extractor) Extract(ctx context.Context, corpus string) ([]entity.ParameterReading, error) {
	if strings.TrimSpace(corpus) == "" {
		return nil, nil
	}
	if e.classifier == nil {
		out := ParseTable(corpus)
		e.logger.Info("readings.table", "count", len(out))
		return out, nil
	}

	reply, err := e.classifier.Classify(ctx, llm.BuildReadingsPrompt(corpus))
	if err != nil {
		return nil, common.CapabilityError("readings", err)
	}
	raw := llm.ExtractJSONValue(reply)
	if raw == "" {
		e.logger.Warn("readings.no_json", "reply_len", len(reply))
		return nil, common.CapabilityError("readings", errNoJSON)
	}

	out, dropped, err := llm.NormalizeReadingRecords(raw, e.logger)
	if err != nil {
		e.logger.Warn("readings.normalize_failed", "error", err)
		return nil, common.CapabilityError("readings", err)
	}
	e.logger.Info("readings.extracted", "count", len(out), "dropped_keys", len(dropped))
	return out, nil
}
