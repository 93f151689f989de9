// Package chunk splits extracted document text into overlapping,
// fingerprinted chunks suitable for indexing.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

// Chunk is a contiguous span of extracted text from a single source.
type Chunk struct {
	// SourceID identifies the source document the chunk came from.
	SourceID string
	// Seq is the dense, 0-based position of the chunk within its source.
	Seq int
	// Text is the chunk content.
	Text string
	// Fingerprint is the hex-encoded SHA-256 of Text.
	Fingerprint string
}

// New creates a chunk and computes its fingerprint.
func New(sourceID string, seq int, text string) Chunk {
	return Chunk{
		SourceID:    sourceID,
		Seq:         seq,
		Text:        text,
		Fingerprint: Fingerprint(text),
	}
}

// Fingerprint returns the hex-encoded SHA-256 of text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
