package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. DocumentRepository has no resources to release.
func (r *DocumentRepository) Close() error {
	return nil
}

// CreateDocument stores a new document record.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Key())

		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		doc.InsertedAt = time.Now().UTC()
		doc.UpdatedAt = doc.InsertedAt

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// GetDocument retrieves a single document by key.
func (r *DocumentRepository) GetDocument(ctx context.Context, key core.DocumentKey) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(key))
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

// ListDocumentsByChat retrieves all documents for a chat, most recent first.
func (r *DocumentRepository) ListDocumentsByChat(ctx context.Context, chatID string) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentChatPrefix(chatID)
		// Keys sort by upload time ascending; walk backwards for most
		// recent first.
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// In reverse mode the iterator must be seeked past the prefix.
		seek := append(append([]byte{}, opts.Prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// SetStatus updates a document's status. Last write wins.
func (r *DocumentRepository) SetStatus(ctx context.Context, key core.DocumentKey, status core.Status, detail string) error {
	if err := core.ValidateStatus(status); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		k := makeDocumentKey(key)
		doc, err := readDocument(tx, k)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		doc.Status = status
		doc.Error = ""
		doc.Note = ""
		switch status {
		case core.StatusFailed:
			doc.Error = detail
		case core.StatusCompleted:
			doc.Note = detail
		}
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(k, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// SetMissingQuestions replaces the unanswerable question IDs on a document.
func (r *DocumentRepository) SetMissingQuestions(ctx context.Context, key core.DocumentKey, ids []core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		k := makeDocumentKey(key)
		doc, err := readDocument(tx, k)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		doc.MissingQuestionIDs = ids
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(k, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readDocument reads a document from the transaction.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}
