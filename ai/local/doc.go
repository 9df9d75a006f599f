// Package local provides AI fallbacks that run in-process without network access.
//
//   - TFIDFEmbedder: hashed unigram and bigram term weights
//   - HashEmbedder: deterministic pseudo-random vectors seeded by the text
//   - DeterministicCompleter: templated answers built from retrieved excerpts
//
// HashEmbedder and DeterministicCompleter never fail and serve as chain terminals.
package local
