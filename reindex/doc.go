// Package reindex re-embeds the stored chunks of documents, for example after
// switching embedding providers or models.
package reindex
