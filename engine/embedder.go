package engine

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// hashPositions is the number of vector positions each word activates.
const hashPositions = 8

// HashEmbedder is a deterministic bag-of-words embedder. Texts that share
// words produce similar vectors, which is enough to exercise semantic recall
// without a model.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of length dim.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultEmbeddingDim
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dimensions() int {
	return h.dim
}

// Embed lowercases text, splits it on non-alphanumeric runes, and adds each
// word of two or more bytes to hashPositions buckets. The result is unit
// length unless text has no words.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if len(w) <= 1 {
			continue
		}

		var hash uint64
		for i := 0; i < len(w); i++ {
			hash = hash*31 + uint64(w[i])
		}
		for i := range uint64(hashPositions) {
			v[(hash+i*7919)%uint64(h.dim)]++
		}
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= norm
		}
	}
	return v, nil
}
