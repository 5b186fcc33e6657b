package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedding returns a deterministic bag-of-words embedding function with
// dims dimensions. Texts sharing words get similar vectors. The last
// dimension is a constant bias so no text maps to the zero vector.
func HashEmbedding(dims int) func(ctx context.Context, text string) ([]float32, error) {
	if dims < 2 {
		dims = 2
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[int(h.Sum32())%(dims-1)]++
		}
		vec[dims-1] = 0.1

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}

		return vec, nil
	}
}
