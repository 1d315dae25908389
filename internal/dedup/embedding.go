package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"

	"IntelDigest/internal/ports"
)

const (
	// DefaultDimensions matches the similarity index created on first run.
	DefaultDimensions  = 384
	contentPrefixRunes = 200
)

// HashEmbedder derives a deterministic vector by hashing (text, dimension) pairs.
// Identical text yields identical vectors; it carries no semantic signal beyond that.
type HashEmbedder struct {
	dims int
}

var _ ports.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder builds an embedder producing dims-sized vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed maps every dimension i to sha256("<text>_<i>") folded into [-1, 1].
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	vec := make([]float32, h.dims)
	buf := make([]byte, 0, len(normalized)+8)
	for i := range vec {
		buf = append(buf[:0], normalized...)
		buf = append(buf, '_')
		buf = strconv.AppendInt(buf, int64(i), 10)
		sum := sha256.Sum256(buf)
		v := float64(binary.BigEndian.Uint32(sum[:4])) / (1 << 32)
		vec[i] = float32(v*2 - 1)
	}
	return vec, nil
}

// EmbeddingText weights the title by repeating it and appends a content prefix.
func EmbeddingText(title, content string) string {
	runes := []rune(content)
	if len(runes) > contentPrefixRunes {
		runes = runes[:contentPrefixRunes]
	}
	return title + " " + title + " " + string(runes)
}
