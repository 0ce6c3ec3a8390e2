package semantic

import (
	"math"

	"github.com/hbollon/go-edlib"
)

// FuzzyMatcher provides fuzzy string matching for the engine's miss path:
// when exact/stem lookup finds nothing, FindMatches scores candidates
// against the target and returns those clearing the configured threshold.
type FuzzyMatcher struct {
	enabled   bool
	threshold float64
	algorithm string // "jaro-winkler", "levenshtein", "cosine"
}

// NewFuzzyMatcher creates a new fuzzy matcher with explicit configuration.
func NewFuzzyMatcher(enabled bool, threshold float64, algorithm string) *FuzzyMatcher {
	if threshold < 0 || threshold > 1 {
		threshold = 0.80
	}

	if algorithm == "" {
		algorithm = "jaro-winkler"
	}

	return &FuzzyMatcher{
		enabled:   enabled,
		threshold: threshold,
		algorithm: algorithm,
	}
}

// NewFuzzyMatcherFromDict creates a fuzzy matcher from TranslationDictionary config.
func NewFuzzyMatcherFromDict(dict *TranslationDictionary) *FuzzyMatcher {
	if dict == nil {
		return NewFuzzyMatcher(false, 0.80, "jaro-winkler")
	}

	return NewFuzzyMatcher(
		dict.FuzzyConfig.Enabled,
		dict.FuzzyConfig.Threshold,
		dict.FuzzyConfig.Algorithm,
	)
}

// Similarity returns the similarity score between two strings (0.0-1.0)
// using the matcher's configured algorithm.
func (fm *FuzzyMatcher) Similarity(a, b string) float64 {
	if !fm.enabled {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	switch fm.algorithm {
	case "jaro-winkler":
		return fm.jaroWinkler(a, b)
	case "levenshtein":
		return fm.levenshteinSimilarity(a, b)
	case "cosine":
		return fm.cosineSimilarity(a, b)
	default:
		return fm.jaroWinkler(a, b)
	}
}

// jaroWinkler calculates Jaro-Winkler similarity using go-edlib.
func (fm *FuzzyMatcher) jaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}

	return float64(score)
}

// levenshteinSimilarity calculates Levenshtein-based similarity.
func (fm *FuzzyMatcher) levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	// go-edlib returns a normalized similarity in the 0-1 range.
	similarity, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0.0
	}

	return float64(similarity)
}

// cosineSimilarity calculates cosine similarity based on character bigrams.
func (fm *FuzzyMatcher) cosineSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	bigramsA := fm.getBigrams(a)
	bigramsB := fm.getBigrams(b)

	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0.0
	}

	intersection := 0.0
	for bigram := range bigramsA {
		if bigramsB[bigram] {
			intersection++
		}
	}

	magnitudeA := math.Sqrt(float64(len(bigramsA)))
	magnitudeB := math.Sqrt(float64(len(bigramsB)))

	if magnitudeA == 0 || magnitudeB == 0 {
		return 0.0
	}

	return intersection / (magnitudeA * magnitudeB)
}

// getBigrams extracts all 2-character subsequences from a string.
func (fm *FuzzyMatcher) getBigrams(s string) map[string]bool {
	bigrams := make(map[string]bool)

	if len(s) < 2 {
		bigrams[s] = true
		return bigrams
	}

	for i := 0; i < len(s)-1; i++ {
		bigram := s[i : i+2]
		bigrams[bigram] = true
	}

	return bigrams
}

// FindMatches finds all strings from candidates whose similarity to target
// clears the matcher's threshold, sorted by similarity descending.
func (fm *FuzzyMatcher) FindMatches(target string, candidates []string) []FuzzyMatch {
	var matches []FuzzyMatch

	for _, candidate := range candidates {
		similarity := fm.Similarity(target, candidate)
		if similarity >= fm.threshold {
			matches = append(matches, FuzzyMatch{
				Term:       candidate,
				Similarity: similarity,
			})
		}
	}

	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Similarity > matches[i].Similarity {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}

	return matches
}

// FuzzyMatch represents a fuzzy match result.
type FuzzyMatch struct {
	Term       string
	Similarity float64
}
