package extract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// Fallback tries primary, then secondary when primary fails for any reason
// other than a missing or invalid document.
type Fallback struct {
	Primary   TextExtractor
	Secondary TextExtractor
	Logger    *slog.Logger
}

func (f Fallback) ExtractText(ctx context.Context, path string) ([]entity.TextFragment, error) {
	frags, err := f.Primary.ExtractText(ctx, path)
	if err == nil || f.Secondary == nil || common.IsPermanent(err) {
		return frags, err
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("extract.fallback", "path", path, "error", err)
	return f.Secondary.ExtractText(ctx, path)
}

// WithTimeout bounds every ExtractText call; a timeout surfaces as a capability error.
func WithTimeout(x TextExtractor, d time.Duration) TextExtractor {
	if d <= 0 {
		return x
	}
	return timeoutExtractor{x: x, d: d}
}

// OCRWithTimeout bounds every OCRPages call.
func OCRWithTimeout(p PageOCR, d time.Duration) PageOCR {
	if p == nil || d <= 0 {
		return p
	}
	return timeoutOCR{p: p, d: d}
}

type timeoutExtractor struct {
	x TextExtractor
	d time.Duration
}

func (t timeoutExtractor) ExtractText(ctx context.Context, path string) ([]entity.TextFragment, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	frags, err := t.x.ExtractText(ctx, path)
	return frags, deadlineAsCapability("extract", err)
}

type timeoutOCR struct {
	p PageOCR
	d time.Duration
}

func (t timeoutOCR) OCRPages(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	pages, err := t.p.OCRPages(ctx, path)
	return pages, deadlineAsCapability("ocr", err)
}

func deadlineAsCapability(name string, err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, common.ErrCapability) {
		return common.CapabilityError(name, err)
	}
	return err
}
