package async

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
)

func TestQueueDrainsOnShutdown(t *testing.T) {
	var handled atomic.Int32
	q := NewQueue(func(ctx context.Context, job Job) {
		assert.Equal(t, job.ID.String(), common.JobIDFromContext(ctx))
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		handled.Add(1)
	}, quietLogger(), WithWorkers(3), WithQueueSize(2), WithProcessTimeout(time.Second))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: uuid.New()}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	assert.Equal(t, int32(10), handled.Load())

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{ID: uuid.New()}), ErrQueueClosed)
	q.Shutdown(ctx)
}

func TestEnqueueHonoursContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue(func(context.Context, Job) { <-block }, quietLogger(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: uuid.New()}))
	// the single worker holds the first job; wait until it has been taken off the channel
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{ID: uuid.New()}), context.DeadlineExceeded)
}

func TestWorkerContextCarriesJobLogger(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	done := make(chan struct{})
	q := NewQueue(func(ctx context.Context, job Job) {
		common.LoggerFromContext(ctx, nil).Info("job.seen")
		close(done)
	}, logger, WithWorkers(1))
	defer q.Shutdown(context.Background())

	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: id, RequestID: "req-7"}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job not handled")
	}
	out := buf.String()
	assert.Contains(t, out, `"msg":"job.seen"`)
	assert.Contains(t, out, `"job_id":"`+id.String()+`"`)
	assert.Contains(t, out, `"request_id":"req-7"`)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
