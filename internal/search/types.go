// Package search implements hybrid retrieval: parallel semantic and
// lexical legs fused by weighted rank scores.
package search

// Default retrieval parameters.
const (
	// DefaultCandidatesPerLeg is how many candidates each leg fetches.
	DefaultCandidatesPerLeg = 10

	// DefaultMaxResults is the number of fused results returned.
	DefaultMaxResults = 5
)

// QueryType classifies the intent of a query.
type QueryType string

const (
	// QueryTypeFactual asks for a specific fact (what/when/where/who).
	QueryTypeFactual QueryType = "factual"
	// QueryTypeExplanatory asks for an explanation (how/why/explain).
	QueryTypeExplanatory QueryType = "explanatory"
	// QueryTypeComparative asks for a comparison.
	QueryTypeComparative QueryType = "comparative"
	// QueryTypeGeneral is everything else.
	QueryTypeGeneral QueryType = "general"
)

// Weights holds the fusion weights for the two retrieval legs.
// Semantic + Lexical must equal 1.0.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// Preset weights chosen by the query analyzer.
var (
	// SpecificTermWeights favor keyword matching for queries carrying
	// numerals, proper nouns, or interrogatives.
	SpecificTermWeights = Weights{Semantic: 0.4, Lexical: 0.6}

	// ConceptualWeights favor vector similarity for everything else.
	ConceptualWeights = Weights{Semantic: 0.8, Lexical: 0.2}
)

// Candidate is one hit from a retrieval leg, ordered best-first.
type Candidate struct {
	// SourceID and Fingerprint together identify the chunk.
	SourceID    string
	Fingerprint string
	Text        string
}

// Result is a fused retrieval result.
type Result struct {
	SourceID    string
	Fingerprint string
	Text        string

	// Score is the weighted combination of the two rank scores.
	Score float64
	// SemanticScore and LexicalScore are the per-leg rank scores,
	// zero when the chunk is missing from that leg.
	SemanticScore float64
	LexicalScore  float64
	// SemanticRank and LexicalRank are 0-based positions in each leg,
	// -1 when absent.
	SemanticRank int
	LexicalRank  int
}

// Analysis is the query analyzer's verdict.
type Analysis struct {
	Type             QueryType
	HasSpecificTerms bool
	Weights          Weights
}
