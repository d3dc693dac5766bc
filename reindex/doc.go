// Package reindex regenerates embeddings for every chunk already stored in
// the vector index, for use after switching or upgrading the embedding model.
//
// Chunks are processed in batches with retry and exponential backoff around
// the embedding calls, and progress is reported to a configurable writer.
package reindex
