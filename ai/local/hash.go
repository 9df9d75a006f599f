package local

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// HashName identifies the hash embedder.
const HashName = "hash_fallback"

// hashBlock is the number of dimensions drawn from one seed.
const hashBlock = 128

// HashEmbedder derives a vector from the text alone.
// Identical text always yields the identical vector. The vector carries no
// semantic meaning, so it only keeps the pipeline moving.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder producing vectors of length dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{dims: dims}
}

// Name returns "hash_fallback".
func (h *HashEmbedder) Name() string { return HashName }

// EmbedText never returns an error.
func (h *HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return h.Embed(text), nil
}

// Embed builds the vector in blocks of 128 values, each block drawn from
// N(0, 0.1) with a seed taken from blake2b(text + "_" + block).
func (h *HashEmbedder) Embed(text string) []float32 {
	out := make([]float32, 0, h.dims+hashBlock)
	for block := 0; len(out) < h.dims; block++ {
		rng := rand.New(rand.NewPCG(blockSeed(text, block), uint64(block)))
		for range hashBlock {
			out = append(out, float32(rng.NormFloat64()*0.1))
		}
	}
	return out[:h.dims]
}

func blockSeed(text string, block int) uint64 {
	hasher, _ := blake2b.New(32, nil)
	hasher.Write([]byte(text + "_" + strconv.Itoa(block)))
	return binary.BigEndian.Uint64(hasher.Sum(nil)[:8])
}
