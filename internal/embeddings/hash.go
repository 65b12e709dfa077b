package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// hashProvider produces deterministic bag-of-tokens embeddings without any
// model service. Quality is well below a learned model; its role is offline
// installs and deterministic tests.
type hashProvider struct {
	dims int
}

func newHash(dims int) Provider {
	return &hashProvider{dims: dims}
}

func (p *hashProvider) Name() string    { return "hash" }
func (p *hashProvider) Dimensions() int { return p.dims }

func (p *hashProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		out[i] = p.embedOne(input)
	}
	return out, nil
}

func (p *hashProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		bucket := int(sum % uint64(p.dims))
		// second hash bit decides sign so common tokens don't all pile up
		// in the positive direction
		if (sum>>63)&1 == 1 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
