package semantic

import (
	"strings"

	"github.com/surgebase/porter2"
)

// Stemmer normalizes words to a common root so "authenticate",
// "authentication", and "authenticating" resolve to the same lookup key.
type Stemmer struct {
	enabled    bool
	algorithm  string
	minLength  int
	exclusions map[string]bool
}

// NewStemmer creates a new stemmer with configuration.
func NewStemmer(enabled bool, algorithm string, minLength int, exclusions map[string]bool) *Stemmer {
	if algorithm == "" {
		algorithm = "porter2"
	}

	if minLength < 0 {
		minLength = 3
	}

	if exclusions == nil {
		exclusions = make(map[string]bool)
	}

	return &Stemmer{
		enabled:    enabled,
		algorithm:  algorithm,
		minLength:  minLength,
		exclusions: exclusions,
	}
}

// NewStemmerFromDict creates a stemmer from TranslationDictionary config.
func NewStemmerFromDict(dict *TranslationDictionary) *Stemmer {
	if dict == nil {
		return NewStemmer(false, "porter2", 3, make(map[string]bool))
	}

	return NewStemmer(
		dict.StemmingConfig.Enabled,
		dict.StemmingConfig.Algorithm,
		dict.StemmingConfig.MinLength,
		dict.StemmingConfig.Exclusions,
	)
}

// Stem returns the stem of a word, or the original word if stemming is
// disabled, the word is excluded, or it is shorter than the minimum length.
func (s *Stemmer) Stem(word string) string {
	if !s.enabled {
		return word
	}

	if s.exclusions[strings.ToLower(word)] {
		return word
	}

	if len(word) < s.minLength {
		return word
	}

	switch s.algorithm {
	case "none":
		return word
	default:
		return porter2.Stem(word)
	}
}
