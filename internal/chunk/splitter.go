package chunk

import "strings"

// Default splitter parameters.
const (
	DefaultChunkSize    = 8000
	DefaultChunkOverlap = 800
)

// defaultSeparators are tried in order from coarsest to finest.
// The empty separator splits between every character as a last resort.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter recursively splits text on a separator hierarchy, keeping
// chunks under a size limit with a fixed overlap between neighbors.
// Splitting is deterministic: the same text always yields the same chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a splitter with the given size and overlap.
// Non-positive size falls back to DefaultChunkSize; a negative overlap
// falls back to DefaultChunkOverlap.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split splits text into fingerprinted chunks attributed to sourceID.
// Whitespace-only pieces are dropped; Seq is dense over the kept pieces.
func (s *Splitter) Split(sourceID, text string) []Chunk {
	pieces := s.splitText(text, s.separators)

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, New(sourceID, len(chunks), trimmed))
	}
	return chunks
}

// splitText recursively splits text using the first separator that
// produces pieces, descending to finer separators for oversized pieces.
func (s *Splitter) splitText(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	sep := separators[len(separators)-1]
	rest := separators
	for i, candidate := range separators {
		if candidate == "" {
			sep = candidate
			rest = nil
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = splitRunes(text, s.chunkSize)
	} else {
		parts = strings.Split(text, sep)
	}

	// Oversized parts descend to the next separator level.
	var splits []string
	for _, p := range parts {
		if len(p) <= s.chunkSize {
			splits = append(splits, p)
		} else {
			splits = append(splits, s.splitText(p, rest)...)
		}
	}

	return s.mergeSplits(splits, sep)
}

// mergeSplits greedily packs adjacent splits into chunks up to chunkSize,
// carrying chunkOverlap characters of trailing context into the next chunk.
func (s *Splitter) mergeSplits(splits []string, sep string) []string {
	var (
		result  []string
		current []string
		total   int
	)

	sepLen := len(sep)

	flush := func() {
		if len(current) == 0 {
			return
		}
		doc := strings.Join(current, sep)
		if strings.TrimSpace(doc) != "" {
			result = append(result, doc)
		}
	}

	for _, split := range splits {
		addition := len(split)
		if len(current) > 0 {
			addition += sepLen
		}
		if total+addition > s.chunkSize && len(current) > 0 {
			flush()
			// Drop leading splits until the retained tail fits the overlap.
			for total > s.chunkOverlap || (total+addition > s.chunkSize && total > 0) {
				removed := len(current[0])
				if len(current) > 1 {
					removed += sepLen
				}
				total -= removed
				current = current[1:]
				if len(current) == 0 {
					break
				}
			}
			addition = len(split)
			if len(current) > 0 {
				addition += sepLen
			}
		}
		current = append(current, split)
		total += addition
	}
	flush()

	return result
}

// splitRunes splits text into size-bounded pieces on rune boundaries.
func splitRunes(text string, size int) []string {
	runes := []rune(text)
	var parts []string
	for start := 0; start < len(runes); {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		// Back off to a rune count whose byte length fits.
		for end > start+1 && len(string(runes[start:end])) > size {
			end--
		}
		parts = append(parts, string(runes[start:end]))
		start = end
	}
	return parts
}
