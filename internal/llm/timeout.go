package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
)

// WithTimeout bounds each Classify call and reports every failure as a capability error.
func WithTimeout(c Classifier, d time.Duration, logger *slog.Logger) Classifier {
	if c == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &boundedClassifier{next: c, timeout: d, logger: logger}
}

type boundedClassifier struct {
	next    Classifier
	timeout time.Duration
	logger  *slog.Logger
}

func (b *boundedClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := common.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	out, err := b.next.Classify(ctx, prompt)
	if err != nil {
		b.logger.Warn("llm.classify.failed",
			"error", err,
			"timeout", errors.Is(err, context.DeadlineExceeded),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if errors.Is(err, common.ErrCapability) {
			return "", err
		}
		return "", common.CapabilityError("classify", err)
	}
	return out, nil
}
