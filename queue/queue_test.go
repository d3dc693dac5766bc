package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docreview/core"
	storagebadger "github.com/poiesic/docreview/storage/badger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	backend, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	q := New(backend)
	t.Cleanup(func() {
		q.Close()
		backend.Close()
	})
	return q
}

func makeJob(docID string) *core.Job {
	return &core.Job{
		DocID:      docID,
		ChatID:     "chat-1",
		UploadedAt: time.Now().UTC(),
		FileName:   "report.pdf",
		BlobKey:    "uploads/" + docID,
		FileType:   "application/pdf",
	}
}

// startConsumer runs the consumer in the background and registers a cleanup
// that joins the Run goroutine and releases the pool before the backend
// closes.
func startConsumer(t *testing.T, consumer *Consumer, ctx context.Context, cancel context.CancelFunc) {
	t.Helper()

	runDone := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(runDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-runDone
		consumer.Release()
	})
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-2")))

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", first.DocID)
	assert.False(t, first.EnqueuedAt.IsZero())

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-2", second.DocID)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestEnqueueDedupByDocID(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Acknowledging frees the DocID to queue again.
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, "doc-1"))
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))

	n, err = q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnqueueDroppedWhileInFlight(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// A re-submission during processing must not start a second
	// concurrent job for the same document.
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, q.Ack(ctx, "doc-1"))
	n, err = q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", job.DocID)
}

func TestRequeueRedelivers(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	job.Attempts = 1
	require.NoError(t, q.Requeue(ctx, job))

	again, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", again.DocID)
	assert.Equal(t, 1, again.Attempts)

	require.NoError(t, q.Ack(ctx, "doc-1"))
	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAckRequiresDelivery(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	assert.ErrorIs(t, q.Ack(ctx, "doc-1"), ErrNotInFlight)
	assert.ErrorIs(t, q.Requeue(ctx, makeJob("doc-1")), ErrNotInFlight)
}

func TestEnqueueRejectsInvalidJob(t *testing.T) {
	q := newTestQueue(t)

	err := q.Enqueue(context.Background(), &core.Job{ChatID: "chat-1"})
	assert.Error(t, err)
}

func TestConsumerProcessesJobs(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{})
	)
	handler := func(ctx context.Context, job *core.Job) error {
		mu.Lock()
		seen = append(seen, job.DocID)
		if len(seen) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	}

	consumer, err := NewConsumer(q, handler, WithWorkers(2), WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-2")))

	startConsumer(t, consumer, ctx, cancel)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for jobs")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, seen)
}

func TestConsumerRedeliversOnError(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	var attempts atomic.Int32
	done := make(chan struct{})
	handler := func(ctx context.Context, job *core.Job) error {
		if attempts.Add(1) < 3 {
			return assert.AnError
		}
		close(done)
		return nil
	}

	consumer, err := NewConsumer(q, handler,
		WithWorkers(1),
		WithPollInterval(10*time.Millisecond),
		WithRetryDelay(5*time.Millisecond),
		WithMaxAttempts(5),
	)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	startConsumer(t, consumer, ctx, cancel)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for redelivery")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestConsumerRetryDoesNotBlockWorker(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	var doc1Attempts atomic.Int32
	doc2Done := make(chan struct{})
	handler := func(ctx context.Context, job *core.Job) error {
		if job.DocID == "doc-1" {
			doc1Attempts.Add(1)
			return assert.AnError
		}
		close(doc2Done)
		return nil
	}

	// One worker and a long backoff: doc-2 only completes if doc-1's
	// retry wait happens off the worker slot.
	consumer, err := NewConsumer(q, handler,
		WithWorkers(1),
		WithPollInterval(5*time.Millisecond),
		WithRetryDelay(2*time.Second),
		WithMaxAttempts(2),
	)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	require.NoError(t, q.Enqueue(ctx, makeJob("doc-2")))
	startConsumer(t, consumer, ctx, cancel)

	select {
	case <-doc2Done:
	case <-time.After(time.Second):
		t.Fatal("Worker slot blocked through the retry delay")
	}
	assert.Equal(t, int32(1), doc1Attempts.Load())
}

func TestConsumerDropsDeadJobs(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *core.Job) error {
		attempts.Add(1)
		return assert.AnError
	}

	consumer, err := NewConsumer(q, handler,
		WithWorkers(1),
		WithPollInterval(5*time.Millisecond),
		WithRetryDelay(time.Millisecond),
		WithMaxAttempts(2),
	)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	startConsumer(t, consumer, ctx, cancel)

	// Wait for attempts to settle at the cap.
	deadline := time.After(5 * time.Second)
	for attempts.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for attempts")
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), attempts.Load())

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestConsumerJobTimeout(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	timedOut := make(chan struct{})
	handler := func(jobCtx context.Context, job *core.Job) error {
		<-jobCtx.Done()
		close(timedOut)
		return jobCtx.Err()
	}

	consumer, err := NewConsumer(q, handler,
		WithWorkers(1),
		WithPollInterval(5*time.Millisecond),
		WithJobTimeout(20*time.Millisecond),
		WithMaxAttempts(1),
	)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(ctx, makeJob("doc-1")))
	startConsumer(t, consumer, ctx, cancel)

	select {
	case <-timedOut:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for job timeout")
	}
}
