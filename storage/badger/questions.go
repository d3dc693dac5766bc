package badger

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/storage"
)

// QuestionRepository implements storage.QuestionRepository for BadgerDB.
type QuestionRepository struct {
	backend *Backend

	seqOnce sync.Once
	seq     *badger.Sequence
	seqErr  error
}

var _ storage.QuestionRepository = (*QuestionRepository)(nil)

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(backend *Backend) (*QuestionRepository, error) {
	return &QuestionRepository{
		backend: backend,
	}, nil
}

// Close releases the owner-index sequence.
func (r *QuestionRepository) Close() error {
	if r.seq != nil {
		return r.seq.Release()
	}
	return nil
}

func (r *QuestionRepository) sequence() (*badger.Sequence, error) {
	r.seqOnce.Do(func() {
		r.seq, r.seqErr = r.backend.GetSequence("qusownseq")
	})
	return r.seq, r.seqErr
}

// SeedQuestions stores questions with content-derived IDs.
func (r *QuestionRepository) SeedQuestions(ctx context.Context, questions ...*core.EvaluationQuestion) ([]*core.EvaluationQuestion, error) {
	seq, err := r.sequence()
	if err != nil {
		return nil, err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, question := range questions {
			if err := core.ValidateQuestion(question); err != nil {
				return err
			}
			if question.Id == 0 {
				question.Id = core.IDFromContent(question.Text)
			}
			question.InsertedAt = time.Now().UTC()

			key := makeQuestionKey(question.Id)

			// Re-seeding the same text hits the same ID; skip the owner
			// index in that case so order reflects first insertion.
			_, getErr := tx.Get(key)
			fresh := getErr == badger.ErrKeyNotFound
			if getErr != nil && getErr != badger.ErrKeyNotFound {
				return getErr
			}

			if err := tx.Set(key, storage.MarshalQuestion(question)); err != nil {
				return err
			}

			if fresh {
				n, err := seq.Next()
				if err != nil {
					return err
				}
				ownerKey := makeQuestionOwnerKey(question.OwnerID, n, question.Id)
				if err := tx.Set(ownerKey, []byte{}); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return questions, err
}

// ListQuestions retrieves all questions for an owner in insertion order.
func (r *QuestionRepository) ListQuestions(ctx context.Context, ownerID string) ([]*core.EvaluationQuestion, error) {
	var results []*core.EvaluationQuestion
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeQuestionOwnerPrefix(ownerID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			// The question ID is the trailing 8 bytes of the index key.
			id, ok := questionIDFromOwnerKey(key)
			if !ok {
				continue
			}

			question, err := readQuestion(tx, makeQuestionKey(id))
			if err != nil {
				return err
			}
			if question != nil {
				results = append(results, question)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetQuestion retrieves a single question by ID.
func (r *QuestionRepository) GetQuestion(ctx context.Context, id core.ID) (*core.EvaluationQuestion, error) {
	var result *core.EvaluationQuestion
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readQuestion(tx, makeQuestionKey(id))
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

func questionIDFromOwnerKey(key []byte) (core.ID, bool) {
	if len(key) < 8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:])), true
}

// readQuestion reads a question from the transaction.
func readQuestion(tx *badger.Txn, key []byte) (*core.EvaluationQuestion, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var question *core.EvaluationQuestion
	err = item.Value(func(val []byte) error {
		var err error
		question, err = storage.UnmarshalQuestion(val)
		return err
	})
	return question, err
}
