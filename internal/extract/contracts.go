// Package extract defines the document text capabilities the pipeline consumes
// and the in-process PDF text-layer implementation.
package extract

import (
	"context"

	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// TextExtractor is Stage 1: file -> positioned text fragments.
// A missing document fails with an error wrapping common.ErrNotFound.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) ([]entity.TextFragment, error)
}

// PageOCR is the image re-extraction capability: file -> text per page.
// Best effort: it may fail or return too little text.
type PageOCR interface {
	OCRPages(ctx context.Context, path string) ([]string, error)
}
