package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/async"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
)

// Submitter is the part of the orchestrator the ingestor needs.
type Submitter interface {
	Submit(ctx context.Context, fileRef string, opts async.SubmitOptions) (uuid.UUID, error)
}

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path         string
	JobID        string
	Deduplicated bool
	HashHex      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor submits PDF files found on the local filesystem. Files are
// deduplicated by content hash for the lifetime of the Ingestor.
type Ingestor struct {
	sub    Submitter
	opts   async.SubmitOptions
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID
}

func NewIngestor(sub Submitter, opts async.SubmitOptions, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{sub: sub, opts: opts, logger: logger, seen: map[string]uuid.UUID{}}
}

// IngestPath submits a single file unless the same content was already submitted.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (FileResult, error) {
	out := FileResult{Path: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.Path = abs
	if !constants.IsAllowedExt(filepath.Ext(abs)) {
		return out, common.NewAppError("INVALID_INPUT", "unsupported or missing extension: "+filepath.Base(abs), common.ErrInvalidInput)
	}

	sum, err := hashFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return out, common.NewAppError("NOT_FOUND", abs, common.ErrNotFound)
		}
		return out, fmt.Errorf("hash %s: %w", abs, err)
	}
	out.HashHex = sum

	i.mu.Lock()
	if id, ok := i.seen[sum]; ok {
		i.mu.Unlock()
		out.JobID, out.Deduplicated = id.String(), true
		i.logger.Info("ingest.deduplicated", "path", abs, "job_id", id)
		return out, nil
	}
	i.mu.Unlock()

	id, err := i.sub.Submit(ctx, abs, i.opts)
	if err != nil {
		i.logger.Error("ingest.submit.failed", "path", abs, "error", err)
		return out, err
	}

	i.mu.Lock()
	i.seen[sum] = id
	i.mu.Unlock()

	out.JobID = id.String()
	i.logger.Info("ingest.submitted", "path", abs, "job_id", id, "sha256", sum)
	return out, nil
}
