package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/reconcile"
)

type fakeProcessor struct {
	calls atomic.Int32
	seen  sync.Map
}

func (f *fakeProcessor) Process(ctx context.Context, req reconcile.Request) (reconcile.Outcome, error) {
	f.calls.Add(1)
	f.seen.Store(req.FilenameHint, common.RequestIDFromContext(ctx))
	if req.FilenameHint == "bad.jpg" {
		return reconcile.Outcome{}, errors.New("boom")
	}
	return reconcile.Outcome{Label: reconcile.OutcomeMatched}, nil
}

func TestProcessorQueue_RunsEveryJob(t *testing.T) {
	proc := &fakeProcessor{}
	var (
		mu      sync.Mutex
		results = map[string]Result{}
	)
	q := NewProcessorQueue(proc, nil,
		WithWorkers(3),
		WithQueueSize(1),
		WithResultHandler(func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			results[r.Job.ID] = r
		}),
	)

	names := []string{"a.jpg", "b.jpg", "bad.jpg", "c.jpg", "d.jpg"}
	for _, n := range names {
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: n, TraceID: "trace-" + n, Request: reconcile.Request{FilenameHint: n}}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Equal(t, int32(len(names)), proc.calls.Load())
	require.Len(t, results, len(names))
	assert.Error(t, results["bad.jpg"].Err)
	assert.NoError(t, results["a.jpg"].Err)
	assert.Equal(t, reconcile.OutcomeMatched, results["a.jpg"].Outcome.Label)
	assert.False(t, results["a.jpg"].Job.SubmittedAt.IsZero())

	rid, _ := proc.seen.Load("c.jpg")
	assert.Equal(t, "trace-c.jpg", rid)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{ID: "late"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
