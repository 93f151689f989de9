package search

import "sort"

// chunkKey identifies a chunk across retrieval legs.
type chunkKey struct {
	sourceID    string
	fingerprint string
}

// rankScore converts a 0-based rank in a list of n candidates to a
// linearly decaying score: the best candidate gets 1, the last 1/n.
func rankScore(rank, n int) float64 {
	if n <= 0 || rank < 0 || rank >= n {
		return 0
	}
	return 1 - float64(rank)/float64(n)
}

// Fuse combines the semantic and lexical candidate lists into a single
// ranking. Each chunk's per-leg score decays linearly with its rank;
// a chunk absent from a leg scores 0 there. The combined score is the
// weighted sum, sorted descending with ties broken by semantic rank,
// then lexical rank. At most k results are returned.
func Fuse(semantic, lexical []Candidate, w Weights, k int) []Result {
	if k <= 0 {
		k = DefaultMaxResults
	}

	merged := make(map[chunkKey]*Result, len(semantic)+len(lexical))
	order := make([]chunkKey, 0, len(semantic)+len(lexical))

	lookup := func(c Candidate) *Result {
		key := chunkKey{c.SourceID, c.Fingerprint}
		if r, ok := merged[key]; ok {
			return r
		}
		r := &Result{
			SourceID:     c.SourceID,
			Fingerprint:  c.Fingerprint,
			Text:         c.Text,
			SemanticRank: -1,
			LexicalRank:  -1,
		}
		merged[key] = r
		order = append(order, key)
		return r
	}

	for i, c := range semantic {
		r := lookup(c)
		r.SemanticRank = i
		r.SemanticScore = rankScore(i, len(semantic))
	}
	for i, c := range lexical {
		r := lookup(c)
		r.LexicalRank = i
		r.LexicalScore = rankScore(i, len(lexical))
		if r.Text == "" {
			r.Text = c.Text
		}
	}

	results := make([]Result, 0, len(order))
	for _, key := range order {
		r := merged[key]
		r.Score = w.Semantic*r.SemanticScore + w.Lexical*r.LexicalScore
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if ri, rj := tieRank(results[i].SemanticRank), tieRank(results[j].SemanticRank); ri != rj {
			return ri < rj
		}
		return tieRank(results[i].LexicalRank) < tieRank(results[j].LexicalRank)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// tieRank maps the absent-rank sentinel to the largest value so present
// ranks always win ties.
func tieRank(rank int) int {
	if rank < 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}
