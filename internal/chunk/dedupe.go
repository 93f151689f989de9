package chunk

// Dedupe removes chunks with duplicate fingerprints, keeping the first
// occurrence and preserving input order.
func Dedupe(chunks []Chunk) []Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Fingerprint]; ok {
			continue
		}
		seen[c.Fingerprint] = struct{}{}
		out = append(out, c)
	}
	return out
}

// DedupeAgainst removes chunks whose fingerprint appears in seen,
// recording kept fingerprints into seen. Used to merge custom chunks
// against already-accepted document chunks.
func DedupeAgainst(chunks []Chunk, seen map[string]struct{}) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.Fingerprint]; ok {
			continue
		}
		seen[c.Fingerprint] = struct{}{}
		out = append(out, c)
	}
	return out
}
