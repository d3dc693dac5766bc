package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/storage"
	storagebadger "github.com/poiesic/docreview/storage/badger"
)

// Key prefixes. Job records sort FIFO by sequence number; the pending set
// maps DocID to its record for dedup. Both persist until the job is
// acknowledged, so a DocID has at most one queued-or-in-flight job and an
// unacknowledged job survives a restart.
const (
	jobRecordPrefix  = "jobrec"
	jobPendingPrefix = "jobpnd"
	jobSequenceName  = "jobseq"
)

var (
	// ErrEmpty indicates the queue holds no deliverable jobs.
	ErrEmpty = errors.New("queue is empty")

	// ErrNotInFlight indicates an ack or requeue for a job this queue
	// instance has not dequeued.
	ErrNotInFlight = errors.New("job is not in flight")
)

// Queue is a durable FIFO queue of ingestion jobs. Delivery is in-memory
// leased: Dequeue hides a job from other consumers of this instance until
// Ack or Requeue; a crash drops the lease and the job is redelivered on
// restart.
type Queue struct {
	backend *storagebadger.Backend
	logger  *slog.Logger

	mu       sync.Mutex
	seqOnce  sync.Once
	seq      *badgerdb.Sequence
	seqErr   error
	inflight map[string][]byte // DocID -> record key
}

// New creates a queue sharing the given backend.
func New(backend *storagebadger.Backend) *Queue {
	return &Queue{
		backend:  backend,
		logger:   slog.Default().With("component", "queue"),
		inflight: make(map[string][]byte),
	}
}

// Close releases the queue's sequence.
func (q *Queue) Close() error {
	if q.seq != nil {
		return q.seq.Release()
	}
	return nil
}

func (q *Queue) sequence() (*badgerdb.Sequence, error) {
	q.seqOnce.Do(func() {
		q.seq, q.seqErr = q.backend.GetSequence(jobSequenceName)
	})
	return q.seq, q.seqErr
}

// Enqueue adds a job. A job for a DocID that is already queued or in flight
// is dropped silently; the DocID becomes enqueueable again once the earlier
// job is acknowledged.
func (q *Queue) Enqueue(ctx context.Context, job *core.Job) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}

	seq, err := q.sequence()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.backend.WithTx(func(tx *badgerdb.Txn) error {
		pendingKey := makePendingKey(job.DocID)
		if _, err := tx.Get(pendingKey); err == nil {
			q.logger.Debug("job already pending", "docId", job.DocID)
			return nil
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}

		n, err := seq.Next()
		if err != nil {
			return err
		}

		job.EnqueuedAt = time.Now().UTC()

		recordKey := makeJobKey(n)
		if err := tx.Set(recordKey, storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Set(pendingKey, recordKey); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Dequeue leases the oldest deliverable job. Returns ErrEmpty when every
// record is already in flight or none exist. The record and its pending key
// stay in the store until Ack, so the DocID cannot queue a second concurrent
// job and an unacknowledged job is redelivered after a restart.
func (q *Queue) Dequeue(ctx context.Context) (*core.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var job *core.Job
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix + ":")
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var candidate *core.Job
			err := iter.Item().Value(func(val []byte) error {
				var err error
				candidate, err = storage.UnmarshalJob(val)
				return err
			})
			if err != nil {
				return err
			}
			if _, leased := q.inflight[candidate.DocID]; leased {
				continue
			}

			q.inflight[candidate.DocID] = iter.Item().KeyCopy(nil)
			job = candidate
			return nil
		}
		return ErrEmpty
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Ack removes a delivered job for good. Call it after the handler succeeds
// or the job is dead.
func (q *Queue) Ack(ctx context.Context, docID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	recordKey, ok := q.inflight[docID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInFlight, docID)
	}

	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Delete(recordKey); err != nil {
			return err
		}
		if err := tx.Delete(makePendingKey(docID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	delete(q.inflight, docID)
	return nil
}

// Requeue returns a delivered job to the queue for another attempt,
// persisting its updated attempt count. The job keeps its place in FIFO
// order.
func (q *Queue) Requeue(ctx context.Context, job *core.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	recordKey, ok := q.inflight[job.DocID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInFlight, job.DocID)
	}

	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		if err := tx.Set(recordKey, storage.MarshalJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	delete(q.inflight, job.DocID)
	return nil
}

// Len returns the number of unacknowledged jobs, queued and in flight.
func (q *Queue) Len() (int, error) {
	count := 0
	err := q.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// makeJobKey generates the FIFO record key for a sequence number.
func makeJobKey(seq uint64) []byte {
	prefix := jobRecordPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makePendingKey generates the dedup key for a DocID.
func makePendingKey(docID string) []byte {
	return []byte(jobPendingPrefix + ":" + docID)
}
