package search

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Pattern sets for query analysis.
var (
	// numeralPattern matches standalone numbers ("2019", "404").
	numeralPattern = regexp.MustCompile(`\b\d+\b`)

	// properNounPattern matches capitalized word sequences
	// ("Alan Turing", "Kubernetes").
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

	factualWords     = []string{"what", "when", "where", "who"}
	explanatoryWords = []string{"how", "why", "explain"}
	comparativeWords = []string{"compare", "difference", "similar"}
)

// interrogativeWords mark queries that carry specific terms.
var interrogativeWords = []string{"what", "when", "where", "who", "how", "why"}

// Analyzer classifies queries and picks fusion weights. Verdicts are
// cached per normalized query.
type Analyzer struct {
	cache *lru.Cache[string, Analysis]
}

// NewAnalyzer creates an analyzer with a verdict cache of the given
// size (default 256 when non-positive).
func NewAnalyzer(cacheSize int) (*Analyzer, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, Analysis](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{cache: cache}, nil
}

// Analyze classifies the query and selects fusion weights.
func (a *Analyzer) Analyze(query string) Analysis {
	normalized := strings.TrimSpace(query)
	if v, ok := a.cache.Get(normalized); ok {
		return v
	}

	verdict := analyze(normalized)
	a.cache.Add(normalized, verdict)
	return verdict
}

func analyze(query string) Analysis {
	specific := hasSpecificTerms(query)

	verdict := Analysis{
		Type:             classify(query),
		HasSpecificTerms: specific,
		Weights:          ConceptualWeights,
	}
	if specific {
		verdict.Weights = SpecificTermWeights
	}
	return verdict
}

// hasSpecificTerms reports whether the query carries exact-match
// signals: numerals, proper-noun sequences, or interrogatives.
func hasSpecificTerms(query string) bool {
	if numeralPattern.MatchString(query) {
		return true
	}
	if properNounPattern.MatchString(query) {
		return true
	}
	return containsAnyWord(query, interrogativeWords)
}

// classify picks the query type by keyword priority: factual beats
// explanatory beats comparative.
func classify(query string) QueryType {
	switch {
	case containsAnyWord(query, factualWords):
		return QueryTypeFactual
	case containsAnyWord(query, explanatoryWords):
		return QueryTypeExplanatory
	case containsAnyWord(query, comparativeWords):
		return QueryTypeComparative
	default:
		return QueryTypeGeneral
	}
}

// containsAnyWord checks for whole-word, case-insensitive matches.
func containsAnyWord(query string, words []string) bool {
	for _, field := range strings.Fields(strings.ToLower(query)) {
		trimmed := strings.Trim(field, ".,;:!?\"'()")
		for _, w := range words {
			if trimmed == w {
				return true
			}
		}
	}
	return false
}
