package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"slices"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/index"
	"github.com/poiesic/docreview/storage"
	storagebadger "github.com/poiesic/docreview/storage/badger"
)

// Key prefixes. Point keys embed the chat ID so per-chat searches scan a
// single key range.
const (
	pointRecordPrefix = "chupt"
	dimensionKey      = "chuptdim"
)

const keySeparator = 0x00

// Index is a brute-force cosine index on top of the shared badger backend.
// It scans candidate points and ranks them in memory, which is adequate for
// per-chat document sets.
type Index struct {
	backend *storagebadger.Backend
	logger  *slog.Logger
}

var _ index.Index = (*Index)(nil)

// New creates a badger-backed index sharing the given backend.
func New(backend *storagebadger.Backend) *Index {
	return &Index{
		backend: backend,
		logger:  slog.Default().With("component", "badger-index"),
	}
}

// Close releases resources. The shared backend is closed by its owner.
func (i *Index) Close() error {
	return nil
}

// EnsureCollection records the vector dimension on first call and verifies
// it afterwards. Concurrent first calls can conflict under badger's
// serializable isolation; the loser retries and finds the dimension written.
func (i *Index) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", index.ErrDimensionMismatch, dim)
	}
	for {
		err := i.ensureDimension(dim)
		if err == badgerdb.ErrConflict {
			continue
		}
		return err
	}
}

func (i *Index) ensureDimension(dim int) error {
	return i.backend.WithTx(func(tx *badgerdb.Txn) error {
		item, err := tx.Get([]byte(dimensionKey))
		if err == badgerdb.ErrKeyNotFound {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(dim))
			if err := tx.Set([]byte(dimensionKey), buf); err != nil {
				return err
			}
			return tx.Commit()
		}
		if err != nil {
			return err
		}

		var existing uint64
		err = item.Value(func(val []byte) error {
			existing = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return err
		}
		if int(existing) != dim {
			return fmt.Errorf("%w: collection has %d, requested %d", index.ErrDimensionMismatch, existing, dim)
		}
		return nil
	}, true)
}

func (i *Index) dimension(tx *badgerdb.Txn) (int, error) {
	item, err := tx.Get([]byte(dimensionKey))
	if err == badgerdb.ErrKeyNotFound {
		return 0, index.ErrCollectionMissing
	}
	if err != nil {
		return 0, err
	}
	var dim uint64
	err = item.Value(func(val []byte) error {
		dim = binary.BigEndian.Uint64(val)
		return nil
	})
	return int(dim), err
}

// Upsert writes points, replacing any with the same ID.
func (i *Index) Upsert(ctx context.Context, points []core.ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}
	return i.backend.WithTx(func(tx *badgerdb.Txn) error {
		dim, err := i.dimension(tx)
		if err != nil {
			return err
		}
		for _, point := range points {
			if len(point.Vector) != dim {
				return fmt.Errorf("%w: point %s has %d, collection has %d",
					index.ErrDimensionMismatch, point.ID, len(point.Vector), dim)
			}
			key := makePointKey(point.Payload.ChatID, point.ID)
			if err := tx.Set(key, storage.MarshalPoint(&point)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Search scans candidate points and returns the most similar ones.
func (i *Index) Search(ctx context.Context, vector []float32, filter index.Filter, limit int) ([]index.ScoredPoint, error) {
	var results []index.ScoredPoint

	err := i.backend.WithTx(func(tx *badgerdb.Txn) error {
		if _, err := i.dimension(tx); err != nil {
			return err
		}

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = scanPrefix(filter)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var point *core.ChunkPoint
			err := iter.Item().Value(func(val []byte) error {
				var err error
				point, err = storage.UnmarshalPoint(val)
				return err
			})
			if err != nil {
				return err
			}
			if point == nil || !filter.Matches(point.Payload) {
				continue
			}
			if len(point.Vector) == 0 {
				continue
			}

			results = append(results, index.ScoredPoint{
				Point: *point,
				Score: cosineSimilarity(vector, point.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b index.ScoredPoint) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes all points matching the filter.
func (i *Index) Delete(ctx context.Context, filter index.Filter) error {
	return i.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = scanPrefix(filter)
		iter := tx.NewIterator(opts)

		var victims [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var point *core.ChunkPoint
			err := iter.Item().Value(func(val []byte) error {
				var err error
				point, err = storage.UnmarshalPoint(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			if point != nil && filter.Matches(point.Payload) {
				victims = append(victims, iter.Item().KeyCopy(nil))
			}
		}
		iter.Close()

		for _, key := range victims {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		i.logger.Debug("deleted points", "count", len(victims))
		return tx.Commit()
	}, true)
}

// Iterate streams all points in key order, batched.
func (i *Index) Iterate(ctx context.Context, batchSize int, fn func(points []core.ChunkPoint) error) error {
	if batchSize < 1 {
		batchSize = 100
	}
	return i.backend.WithTx(func(tx *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(pointRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		batch := make([]core.ChunkPoint, 0, batchSize)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var point *core.ChunkPoint
			err := iter.Item().Value(func(val []byte) error {
				var err error
				point, err = storage.UnmarshalPoint(val)
				return err
			})
			if err != nil {
				return err
			}
			if point == nil {
				continue
			}

			batch = append(batch, *point)
			if len(batch) == batchSize {
				if err := fn(batch); err != nil {
					return err
				}
				batch = make([]core.ChunkPoint, 0, batchSize)
			}
		}
		if len(batch) > 0 {
			return fn(batch)
		}
		return nil
	}, false)
}

// makePointKey generates the record key for a point.
// Format: prefix:chatID\x00pointID.
func makePointKey(chatID, pointID string) []byte {
	prefix := pointRecordPrefix + ":"
	buf := make([]byte, len(prefix)+len(chatID)+1+len(pointID))
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], chatID)
	buf[offset] = keySeparator
	offset++
	copy(buf[offset:], pointID)
	return buf
}

// scanPrefix narrows the iteration range to one chat when the filter names
// one; otherwise the whole point keyspace is scanned.
func scanPrefix(filter index.Filter) []byte {
	if filter.ChatID == "" {
		return []byte(pointRecordPrefix + ":")
	}
	prefix := pointRecordPrefix + ":"
	buf := make([]byte, len(prefix)+len(filter.ChatID)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], filter.ChatID)
	buf[offset] = keySeparator
	return buf
}

// cosineSimilarity is the normalized dot product of two vectors.
func cosineSimilarity(a, b []float32) float32 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
