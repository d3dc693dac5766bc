package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
type SessionRepository struct {
	backend *Backend
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) (*SessionRepository, error) {
	return &SessionRepository{
		backend: backend,
	}, nil
}

// Close releases resources. SessionRepository has no resources to release.
func (r *SessionRepository) Close() error {
	return nil
}

// GetSession retrieves a session by owner and creation time.
func (r *SessionRepository) GetSession(ctx context.Context, ownerID string, createdAt time.Time) (*core.ScoringSession, error) {
	var result *core.ScoringSession
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSession(tx, makeSessionKey(ownerID, createdAt))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// MergeAnswers folds answers into a session, creating it when absent.
// Documents in the same review are scored concurrently by the worker pool;
// badger's conflict detection makes lost merges surface as ErrConflict, so
// the write is retried until it lands.
func (r *SessionRepository) MergeAnswers(ctx context.Context, ownerID string, createdAt time.Time, answers []core.QuestionAnswer) (*core.ScoringSession, error) {
	var result *core.ScoringSession

	for {
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			key := makeSessionKey(ownerID, createdAt)
			session, err := readSession(tx, key)
			if err != nil {
				return err
			}
			if session == nil {
				session = &core.ScoringSession{
					OwnerID:    ownerID,
					CreatedAt:  createdAt,
					InsertedAt: time.Now().UTC(),
				}
			}

			session.MergeAnswers(answers)
			session.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalSession(session)); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			result = session
			return nil
		}, true)

		if err == badger.ErrConflict {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// readSession reads a session from the transaction.
func readSession(tx *badger.Txn, key []byte) (*core.ScoringSession, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var session *core.ScoringSession
	err = item.Value(func(val []byte) error {
		var err error
		session, err = storage.UnmarshalSession(val)
		return err
	})
	return session, err
}
