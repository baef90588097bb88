package recovery

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/joseph-ayodele/lab-compliance/internal/corpus"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/extract"
)

// Methods recorded on an Outcome.
const (
	MethodTextLayer = "text-layer"
	MethodOCR       = "ocr"
	MethodCleanup   = "cleanup"
)

// MinRecoveredChars is the least OCR output accepted as a replacement.
const MinRecoveredChars = 100

// Outcome is the effective text every later stage must use.
type Outcome struct {
	Fragments    []entity.TextFragment
	Text         string
	Report       Report
	UsedRecovery bool
	Method       string
}

type Stage struct {
	ocr    extract.PageOCR
	logger *slog.Logger
}

// NewStage builds the recovery stage; pageOCR may be nil when no OCR tooling is configured.
func NewStage(pageOCR extract.PageOCR, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{ocr: pageOCR, logger: logger}
}

// Run checks the composed fragments and, when corrupted or forced, re-extracts
// with page OCR. It never fails: capability errors degrade to Cleanup.
func (s *Stage) Run(ctx context.Context, path string, fragments []entity.TextFragment, force bool) Outcome {
	text := corpus.Compose(fragments)
	report := Detect(text)
	out := Outcome{Fragments: fragments, Text: text, Report: report, Method: MethodTextLayer}

	if !report.Corrupted && !force {
		return out
	}
	s.logger.Info("recovery.triggered", "path", path, "corrupted", report.Corrupted, "reason", report.Reason, "forced", force)

	if s.ocr != nil {
		pages, err := s.ocr.OCRPages(ctx, path)
		if err != nil {
			s.logger.Warn("recovery.ocr.failed", "path", path, "error", err)
		} else {
			frags := corpus.FromPages("ocr", pages)
			recovered := corpus.Compose(frags)
			n := utf8.RuneCountInString(recovered)
			if n >= MinRecoveredChars {
				s.logger.Info("recovery.ocr.adopted", "path", path, "pages", len(pages), "chars", n)
				return Outcome{
					Fragments:    frags,
					Text:         recovered,
					Report:       report,
					UsedRecovery: true,
					Method:       MethodOCR,
				}
			}
			s.logger.Warn("recovery.ocr.too_short", "path", path, "chars", n, "min", MinRecoveredChars)
		}
	}

	if !report.Corrupted {
		return out
	}
	cleaned := Cleanup(text)
	s.logger.Info("recovery.cleanup.applied", "path", path, "before_chars", len(text), "after_chars", len(cleaned))
	return Outcome{
		Fragments: []entity.TextFragment{{SourceLabel: MethodCleanup, Ordinal: 1, Content: cleaned}},
		Text:      cleaned,
		Report:    report,
		Method:    MethodCleanup,
	}
}
