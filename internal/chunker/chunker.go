package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"faqrag/internal/domain"
)

// Chunker splits raw text into fixed-size chunks that overlap by a
// configured number of bytes. Identical input always yields identical
// chunks, offsets included, which keeps re-ingestion idempotent.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New validates the chunking parameters. Overlap must be non-negative and
// strictly smaller than the chunk size, otherwise the walk would not advance.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split walks the text in strides of chunkSize-overlap. Each chunk spans
// [offset, offset+chunkSize) clipped to the text length; the last chunk may
// be shorter. Empty text yields no chunks.
func (c *Chunker) Split(text, source string) []domain.Chunk {
	if len(text) == 0 {
		return nil
	}
	stride := c.chunkSize - c.overlap
	var chunks []domain.Chunk
	for offset := 0; offset < len(text); offset += stride {
		end := offset + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		piece := text[offset:end]
		chunks = append(chunks, domain.Chunk{
			ID:          chunkID(source, offset, piece),
			Text:        piece,
			Source:      source,
			StartOffset: offset,
		})
		if end == len(text) {
			break
		}
	}
	return chunks
}

// chunkID hashes (source, offset, text) so identity follows content.
func chunkID(source string, offset int, text string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(offset)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
