// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"context"
	"errors"

	"github.com/poiesic/docreview/core"
)

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCollectionMissing indicates an operation before EnsureCollection.
	ErrCollectionMissing = errors.New("collection does not exist")
)

// Filter restricts search and delete operations by payload fields. Empty
// fields are wildcards; set fields combine with AND.
type Filter struct {
	ChatID     string
	DocumentID string
}

// Matches reports whether a payload satisfies the filter.
func (f Filter) Matches(p core.ChunkPayload) bool {
	if f.ChatID != "" && p.ChatID != f.ChatID {
		return false
	}
	if f.DocumentID != "" && p.DocumentID != f.DocumentID {
		return false
	}
	return true
}

// ScoredPoint is a search hit with its cosine similarity.
type ScoredPoint struct {
	Point core.ChunkPoint
	Score float32
}

// Index stores chunk vectors with filterable payloads.
// Implementations must be safe for concurrent use.
type Index interface {
	// EnsureCollection makes sure the collection exists with the given
	// vector dimension. Idempotent when the dimension matches; returns
	// ErrDimensionMismatch when an existing collection has a different one.
	EnsureCollection(ctx context.Context, dim int) error

	// Upsert writes points, replacing any with the same ID. All vectors
	// must match the collection dimension.
	Upsert(ctx context.Context, points []core.ChunkPoint) error

	// Search returns up to limit points most similar to the vector,
	// restricted by the filter, highest similarity first.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredPoint, error)

	// Delete removes all points matching the filter.
	Delete(ctx context.Context, filter Filter) error

	// Iterate streams every stored point to fn in batches of at most
	// batchSize. Iteration stops on the first error from fn. Maintenance
	// paths use this; it makes no ordering promise.
	Iterate(ctx context.Context, batchSize int, fn func(points []core.ChunkPoint) error) error

	// Close releases backend resources.
	Close() error
}
