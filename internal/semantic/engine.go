package semantic

import (
	"sort"
	"strings"
)

// maxExpansionClosure bounds the transitive closure Expand walks, so a
// densely connected domain group (e.g. "database", with 40+ members) can't
// make a single task word balloon into an unbounded keyword set.
const maxExpansionClosure = 64

// Engine is the Synonym/Stem Engine (spec §4.8): a pivot-language (English)
// index of synonym groups (abbreviations, domain clusters, tag mappings, and
// per-programming-language jargon), keyed by both the raw lowercase term and
// its Porter2 stem so that "validating" and "validate" resolve to the same
// group. Expand returns the transitive closure of a term's group membership.
//
// The retrieval pack carries no second natural-language term set to ground
// real stem-translation pairs against, so Engine registers a single pivot
// dictionary rather than the per-natural-language registration the spec
// describes in the abstract; see DESIGN.md.
type Engine struct {
	stemmer    *Stemmer
	fuzzy      *FuzzyMatcher
	groups     map[string]map[string]bool // lookup key (term or stem) -> synonym set
	vocabulary []string                   // every registered term, for fuzzy fallback
}

// NewEngine builds the pivot dictionary from dict (DefaultTranslationDictionary
// when nil).
func NewEngine(dict *TranslationDictionary) *Engine {
	if dict == nil {
		dict = DefaultTranslationDictionary()
	}
	e := &Engine{
		stemmer: NewStemmerFromDict(dict),
		fuzzy:   NewFuzzyMatcherFromDict(dict),
		groups:  make(map[string]map[string]bool),
	}

	for abbrev, forms := range dict.Abbreviations {
		e.registerGroup(append([]string{abbrev}, forms...))
	}
	for _, terms := range dict.Domains {
		e.registerGroup(terms)
	}
	for tag, terms := range dict.TagMappings {
		e.registerGroup(append([]string{tag}, terms...))
	}
	for _, langTerms := range dict.Languages {
		for term, synonyms := range langTerms {
			e.registerGroup(append([]string{term}, synonyms...))
		}
	}

	vocab := make(map[string]bool, len(e.groups))
	for key, members := range e.groups {
		vocab[key] = true
		for m := range members {
			vocab[m] = true
		}
	}
	e.vocabulary = make([]string, 0, len(vocab))
	for t := range vocab {
		e.vocabulary = append(e.vocabulary, t)
	}
	sort.Strings(e.vocabulary)

	return e
}

// registerGroup links every member of terms under each member's lowercase
// form and stem, so looking up any member (in either form) yields the whole
// group. Groups that share a key (e.g. two abbreviation entries both listing
// "auth") merge transparently, since they end up writing into the same
// backing set.
func (e *Engine) registerGroup(terms []string) {
	var members []string
	keys := make(map[string]bool)
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		members = append(members, t)
		keys[t] = true
		keys[e.stemmer.Stem(t)] = true
	}
	if len(members) == 0 {
		return
	}
	for k := range keys {
		bucket := e.groups[k]
		if bucket == nil {
			bucket = make(map[string]bool, len(members))
			e.groups[k] = bucket
		}
		for _, m := range members {
			bucket[m] = true
		}
	}
}

// Expand lowercases term, looks it up (and its stem) in every registered
// group, and returns the transitive closure: newly discovered synonyms are
// themselves expanded until no group contributes a new term or the closure
// hits maxExpansionClosure. The result always includes term itself.
//
// When the exact/stem walk finds nothing beyond term itself (e.g. a typo'd
// identifier), Expand falls back to FuzzyFallback against the engine's
// vocabulary and folds any matches back into the same closure walk, so a
// misspelled task word still finds its synonym group.
func (e *Engine) Expand(term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	visited := map[string]bool{term: true}
	queue := []string{term}

	walk := func() {
		for i := 0; i < len(queue) && len(visited) < maxExpansionClosure; i++ {
			cur := queue[i]
			lookupKeys := []string{cur, e.stemmer.Stem(cur)}
			for _, k := range lookupKeys {
				for member := range e.groups[k] {
					if visited[member] {
						continue
					}
					visited[member] = true
					queue = append(queue, member)
					if len(visited) >= maxExpansionClosure {
						break
					}
				}
			}
		}
	}

	walk()

	if len(visited) == 1 {
		for _, match := range e.FuzzyFallback(term, e.vocabulary) {
			if visited[match] {
				continue
			}
			visited[match] = true
			queue = append(queue, match)
		}
		walk()
	}

	out := make([]string, 0, len(visited))
	for t := range visited {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// FuzzyFallback returns candidates whose similarity to term clears the
// engine's configured fuzzy threshold, for use when exact/stem/group lookup
// in Expand finds nothing (e.g. a typo'd identifier in the task text).
func (e *Engine) FuzzyFallback(term string, candidates []string) []string {
	matches := e.fuzzy.FindMatches(term, candidates)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Term)
	}
	return out
}
