package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

type stubExtractor struct {
	frags []entity.TextFragment
	err   error
	calls int
	wait  bool
}

func (s *stubExtractor) ExtractText(ctx context.Context, _ string) ([]entity.TextFragment, error) {
	s.calls++
	if s.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.frags, s.err
}

func TestFallbackUsesSecondaryOnCapabilityError(t *testing.T) {
	primary := &stubExtractor{err: common.CapabilityError("pdflib", errors.New("bad xref"))}
	secondary := &stubExtractor{frags: []entity.TextFragment{{Ordinal: 1, Content: "ok"}}}

	got, err := Fallback{Primary: primary, Secondary: secondary}.ExtractText(context.Background(), "x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "ok", got[0].Content)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackKeepsNotFound(t *testing.T) {
	primary := &stubExtractor{err: fmt.Errorf("%w: x.pdf", common.ErrNotFound)}
	secondary := &stubExtractor{}

	_, err := Fallback{Primary: primary, Secondary: secondary}.ExtractText(context.Background(), "x.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, secondary.calls)
}

func TestWithTimeoutReportsCapabilityError(t *testing.T) {
	x := WithTimeout(&stubExtractor{wait: true}, 10*time.Millisecond)
	_, err := x.ExtractText(context.Background(), "x.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCapability)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPDFLibMissingFile(t *testing.T) {
	_, err := NewPDFLibExtractor(nil).ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPDFLibGarbageIsCapabilityError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "garbage.pdf")
	require.NoError(t, os.WriteFile(p, []byte("not a pdf at all"), 0o600))

	_, err := NewPDFLibExtractor(nil).ExtractText(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCapability)
}
