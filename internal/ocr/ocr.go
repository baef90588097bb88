// Package ocr wraps the poppler and tesseract command line tools: text-layer
// extraction with pdftotext and per-page image re-extraction with pdftoppm + tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "ita+eng"
	TessdataDir   string
	DPI           int // rasterization DPI, default 300
	MaxPages      int // 0 = no limit
	PSM           int // tesseract page segmentation mode, 0 = tesseract default
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "ita+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner, used to stub the external tools.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// ExtractText reads the PDF text layer, one fragment per page.
func (e *Extractor) ExtractText(ctx context.Context, path string) ([]entity.TextFragment, error) {
	if err := checkReadable(path); err != nil {
		return nil, err
	}
	start := time.Now()
	text, pages, err := e.pdfToText(ctx, path)
	if err != nil {
		e.logger.Error("ocr.pdftotext.failed", "path", path, "error", err)
		return nil, common.CapabilityError("pdftotext", err)
	}
	e.logger.Debug("ocr.pdftotext.ok", "path", path, "pages", len(pages), "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())

	out := make([]entity.TextFragment, 0, len(pages))
	for i, p := range pages {
		out = append(out, entity.TextFragment{
			SourceLabel: fmt.Sprintf("pdftotext:page-%d", i+1),
			Ordinal:     i + 1,
			Content:     p,
		})
	}
	return out, nil
}

// OCRPages rasterizes every page and runs tesseract on each, returning normalized text per page.
// Pages that fail to OCR are returned empty; the call fails only when nothing could be rendered.
func (e *Extractor) OCRPages(ctx context.Context, path string) ([]string, error) {
	if err := checkReadable(path); err != nil {
		return nil, err
	}
	start := time.Now()
	pages, warnings, err := e.pdfToOCR(ctx, path)
	if err != nil {
		e.logger.Error("ocr.pages.failed", "path", path, "error", err, "warnings", warnings)
		return nil, common.CapabilityError("ocr", err)
	}
	if len(warnings) > 0 {
		e.logger.Warn("ocr.pages.partial", "path", path, "warnings", warnings)
	}
	e.logger.Info("ocr.pages.ok", "path", path, "pages", len(pages), "elapsed_ms", time.Since(start).Milliseconds())
	return pages, nil
}

func checkReadable(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty document path", common.ErrInvalidInput)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}
