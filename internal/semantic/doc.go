// Package semantic implements the Synonym/Stem Engine (spec §4.8): a
// pivot-language (English) synonym index used by the Keyword Extractor to
// expand a task word into its transitive closure of abbreviations, domain
// cluster mates, and per-language jargon.
//
// # Core Components
//
// Engine: the entry point. Expand(term) returns term's synonym closure;
// FuzzyFallback covers typo'd terms that miss the exact/stem lookup.
//
// Stemmer: reduces words to their Porter2 root form so different word forms
// of a concept ("validate", "validating", "validation") share an index key.
//
// FuzzyMatcher: Jaro-Winkler/Levenshtein/cosine similarity, used as Engine's
// fallback when a term has no exact or stemmed group match.
//
// TranslationDictionary: the underlying abbreviation/domain/tag/language
// term tables Engine indexes; DefaultTranslationDictionary returns the
// built-in set.
//
// # Usage
//
//	engine := semantic.NewEngine(nil) // nil uses the built-in dictionary
//	synonyms := engine.Expand("auth") // ["auth", "authenticate", "authorization", ...]
package semantic
