package hostfuncs

import (
	"bytes"
)

// DefaultMaxResponseSize is the default limit on what a remote peer may send back (10MB).
const DefaultMaxResponseSize = 10 * 1024 * 1024

// ChunkBuffer accumulates response chunks in one bounded buffer while
// remembering where each read ended. Data past the limit is discarded and
// Truncated is set.
type ChunkBuffer struct {
	buffer    bytes.Buffer
	ends      []int
	limit     int
	Truncated bool
}

// NewChunkBuffer creates a ChunkBuffer holding at most limit bytes.
func NewChunkBuffer(limit int) *ChunkBuffer {
	return &ChunkBuffer{limit: limit}
}

// Write stores p as one chunk. It never fails; a chunk that does not fit is
// cut at the limit, and chunks arriving after that are dropped.
func (b *ChunkBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		b.Truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.Truncated = true
		p = p[:remaining]
	}
	b.buffer.Write(p)
	b.ends = append(b.ends, b.buffer.Len())
	return len(p), nil
}

// Chunks returns the stored chunks in arrival order. The slices share the
// buffer's memory and stay valid until the next Write.
func (b *ChunkBuffer) Chunks() [][]byte {
	if len(b.ends) == 0 {
		return nil
	}
	data := b.buffer.Bytes()
	chunks := make([][]byte, len(b.ends))
	start := 0
	for i, end := range b.ends {
		chunks[i] = data[start:end:end]
		start = end
	}
	return chunks
}

// Count returns the number of stored chunks.
func (b *ChunkBuffer) Count() int {
	return len(b.ends)
}

// Len returns the number of stored bytes.
func (b *ChunkBuffer) Len() int {
	return b.buffer.Len()
}

// Full reports whether no further bytes can be stored.
func (b *ChunkBuffer) Full() bool {
	return b.buffer.Len() >= b.limit
}
