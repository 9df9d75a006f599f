// Package postgres implements the storage repositories on PostgreSQL.
//
// Chunk embeddings live in a pgvector column and are ranked with the cosine
// distance operator. Full-text search uses ts_rank over plainto_tsquery, so
// every query term must match. The task queue and breaker state stay in
// badger; this package covers documents, chunks, chat and blobs.
package postgres
