// Package chunk splits extracted document text into overlapping pieces
// sized for embedding.
package chunk
