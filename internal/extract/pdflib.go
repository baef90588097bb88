package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// PDFLibExtractor reads the text layer in-process with ledongthuc/pdf.
type PDFLibExtractor struct {
	logger *slog.Logger
}

func NewPDFLibExtractor(logger *slog.Logger) *PDFLibExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFLibExtractor{logger: logger}
}

// ExtractText returns one fragment per non-null page, ordinal = page number.
func (x *PDFLibExtractor) ExtractText(ctx context.Context, path string) (frags []entity.TextFragment, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}

	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("extract.pdflib.panic", "path", path, "panic", r)
			frags = nil
			err = common.CapabilityError("pdflib", fmt.Errorf("panic reading %s: %v", path, r))
		}
	}()

	start := time.Now()
	f, reader, err := pdf.Open(path)
	if err != nil {
		x.logger.Error("extract.pdflib.open_failed", "path", path, "error", err)
		return nil, common.CapabilityError("pdflib", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			x.logger.Warn("extract.pdflib.close_failed", "path", path, "error", cerr)
		}
	}()

	n := reader.NumPage()
	frags = make([]entity.TextFragment, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, common.CapabilityError("pdflib", err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			x.logger.Warn("extract.pdflib.page_failed", "path", path, "page", i, "error", err)
			continue
		}
		frags = append(frags, entity.TextFragment{
			SourceLabel: fmt.Sprintf("pdflib:page-%d", i),
			Ordinal:     i,
			Content:     text,
		})
	}

	x.logger.Debug("extract.pdflib.ok", "path", path, "pages", n, "fragments", len(frags), "elapsed_ms", time.Since(start).Milliseconds())
	return frags, nil
}
