// Package ingestion turns uploaded files into searchable, embedded chunks.
//
// The Processor implements the two durable task kinds:
//   - process_document: extract, chunk and embed a document, then commit its
//     chunks and status in one storage call
//   - retry_embeddings: re-embed the chunks a previous pass left without a
//     vector, backing off until the document is ready or retries run out
//
// A document moves through these statuses:
//
//	queued -> processing -> ready | partial | indexing_pending_quota | failed
//
// partial and indexing_pending_quota schedule a retry_embeddings task, which
// ends in ready or embedding_failed. A process_document task that fails
// unexpectedly is retried by the queue and shows
// indexing_pending_retry_attempt_<n> while it waits.
//
// The Pipeline is the entry point for uploads, reindex requests and deletes.
package ingestion
