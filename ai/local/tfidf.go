package local

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/tokenize"
	"github.com/poiesic/docinx/vector"
)

// TFIDFName identifies the term-weight embedder.
const TFIDFName = "local_tfidf"

// TFIDFEmbedder hashes unigrams and bigrams into a fixed number of buckets.
// Each term contributes 1+ln(tf), weighted by a per-term inverse frequency
// estimate that favors longer, rarer-looking terms, with a hashed sign so
// that bucket collisions tend to cancel. Texts sharing vocabulary land near
// each other, which keeps vector search useful while remote providers are down.
type TFIDFEmbedder struct {
	dims int
}

// NewTFIDFEmbedder creates a term-weight embedder producing vectors of length dims.
func NewTFIDFEmbedder(dims int) *TFIDFEmbedder {
	return &TFIDFEmbedder{dims: dims}
}

// Name returns "local_tfidf".
func (e *TFIDFEmbedder) Name() string { return TFIDFName }

// EmbedText returns a unit vector, or a permanent error when the text
// contains no terms after stop-word removal.
func (e *TFIDFEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	terms := tokenize.Terms(text)
	if len(terms) == 0 {
		return nil, &ai.ProviderError{Provider: TFIDFName, Kind: ai.KindPermanent, Err: ai.ErrEmptyInput}
	}

	counts := make(map[string]int, len(terms)*2)
	for _, t := range terms {
		counts[t]++
	}
	for _, b := range tokenize.Bigrams(terms) {
		counts[b]++
	}

	out := make([]float32, e.dims)
	for term, tf := range counts {
		bucket, sign := e.slot(term)
		weight := (1 + math.Log(float64(tf))) * idf(term)
		out[bucket] += float32(sign * weight)
	}
	return vector.Normalize(out), nil
}

func (e *TFIDFEmbedder) slot(term string) (int, float64) {
	hasher, _ := blake2b.New(32, nil)
	hasher.Write([]byte(term))
	sum := hasher.Sum(nil)
	bucket := int(binary.BigEndian.Uint64(sum[:8]) % uint64(e.dims))
	if sum[8]&1 == 1 {
		return bucket, -1
	}
	return bucket, 1
}

// idf approximates inverse document frequency without a corpus:
// short terms are common, long terms and bigrams are rare.
func idf(term string) float64 {
	return 1 + math.Log(1+float64(len([]rune(term)))/4)
}
