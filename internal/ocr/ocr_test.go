package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
)

type fakeRunner struct {
	calls   []string
	pages   int
	failOn  string
	outputs map[string]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			p := prefix + "-" + string(rune('0'+i)) + ".png"
			if err := os.WriteFile(p, []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		base := filepath.Base(args[0])
		return []byte("text of  " + base + "\n-----\n"), nil, nil
	default:
		return []byte(f.outputs[name]), nil, nil
	}
}

func writePDF(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o600))
	return p
}

func TestExtractTextSplitsPages(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"pdftotext": "page one\fpage two\f"}}
	e := NewExtractor(Config{}, nil).WithRunner(r)

	frags, err := e.ExtractText(context.Background(), writePDF(t))
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "pdftotext:page-1", frags[0].SourceLabel)
	assert.Equal(t, "page two", frags[1].Content)
	assert.Equal(t, 2, frags[1].Ordinal)
}

func TestExtractTextMissingFile(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(&fakeRunner{})
	_, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExtractTextToolFailureIsCapabilityError(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(&fakeRunner{failOn: "pdftotext"})
	_, err := e.ExtractText(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCapability)
}

func TestOCRPages(t *testing.T) {
	r := &fakeRunner{pages: 2}
	e := NewExtractor(Config{}, nil).WithRunner(r)

	pages, err := e.OCRPages(context.Background(), writePDF(t))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "text of page-1.png", pages[0])
	assert.Equal(t, "text of page-2.png", pages[1])
	assert.Equal(t, []string{"pdftoppm", "tesseract", "tesseract"}, r.calls)
}

func TestOCRPagesRespectsMaxPages(t *testing.T) {
	r := &fakeRunner{pages: 3}
	e := NewExtractor(Config{MaxPages: 1}, nil).WithRunner(r)

	pages, err := e.OCRPages(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestOCRPagesNothingRendered(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(&fakeRunner{pages: 0})
	_, err := e.OCRPages(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCapability)
}

func TestNormalize(t *testing.T) {
	in := "a\r\nb\t\tc   d  \n\n\n\ne"
	assert.Equal(t, "a\nb c d\n\ne", Normalize(in))
	assert.False(t, strings.Contains(Normalize("  x  "), "  "))
}
