package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// HashModel is the model name reported by HashEmbedder.
const HashModel = "sha256-counter"

// HashEmbedder derives vectors from a SHA-256 counter stream over the text.
// The same text always maps to the same vector, across processes.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder. dim <= 0 uses DefaultDimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

// Embed returns a vector with components in [0, 1). Empty text maps to the
// all-zero vector.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	if text == "" {
		return vec, nil
	}

	needed := h.dim * 4
	buf := make([]byte, 0, needed+sha256.Size)
	base := []byte(text)
	var counter [4]byte
	for i := uint32(0); len(buf) < needed; i++ {
		binary.LittleEndian.PutUint32(counter[:], i)
		sum := sha256.Sum256(append(base[:len(base):len(base)], counter[:]...))
		buf = append(buf, sum[:]...)
	}

	for i := range vec {
		n := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		vec[i] = float32(float64(n%10_000_000) / 10_000_000.0)
	}
	return vec, nil
}

// EmbedBatch maps Embed over texts.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Model returns HashModel.
func (h *HashEmbedder) Model() string {
	return HashModel
}

// Dimension returns the vector length.
func (h *HashEmbedder) Dimension() int {
	return h.dim
}
