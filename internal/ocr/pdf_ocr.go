package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pdfToText runs pdftotext and splits its output on form feeds (one per page).
func (e *Extractor) pdfToText(ctx context.Context, path string) (string, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	text := string(out)
	pages := strings.Split(strings.TrimSuffix(text, "\f"), "\f")
	return text, pages, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) ([]string, []string, error) {
	tmpDir, err := os.MkdirTemp("", "labcheck-pp-*")
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmpdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, []string{truncate(string(errb), 512)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// prefix-1.png, prefix-2.png, ... (zero padded for long documents)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	pages := make([]string, 0, len(matches))
	var warns []string
	for _, img := range matches {
		if err := ctx.Err(); err != nil {
			return nil, warns, err
		}
		txt, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			pages = append(pages, "")
			continue
		}
		pages = append(pages, Normalize(txt))
	}
	return pages, warns, nil
}
