// Package index defines the vector index contract used by the ingestion
// pipeline and the scoring engine. Two backends exist: an embedded
// badger-based one and a Postgres/pgvector one. Similarity is cosine in
// both.
package index
