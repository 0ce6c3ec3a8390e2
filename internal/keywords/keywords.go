// Package keywords implements the Keyword Extractor (spec §4.9): entity
// extraction, heuristic TF-IDF ranking, RAKE keyphrase extraction, synonym
// expansion, domain detection, and change-type detection over a task's raw
// text.
package keywords

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/standardbeagle/ctxpack/internal/semantic"
	"github.com/standardbeagle/ctxpack/internal/types"
)

const (
	maxKeywords   = 20
	maxKeyphrases = 10
	minWordLength = 3
)

// Result is the Keyword Extractor's output, folded verbatim into the
// Resolver's ResolvedTask.
type Result struct {
	RawWords     []string
	Keywords     []string
	Keyphrases   []string
	Entities     types.Entities
	Domains      []string
	DomainWeight map[string]int
	ChangeType   types.ChangeType
}

// shortAllowlist holds short technical terms that survive the length filter
// that otherwise drops tokens under minWordLength.
var shortAllowlist = map[string]bool{
	"id": true, "ui": true, "ux": true, "io": true, "db": true, "os": true,
	"js": true, "ts": true, "go": true, "ci": true, "cd": true, "vm": true,
	"ip": true, "qa": true, "api": true, "sql": true, "css": true, "xml": true,
}

// stopwords is a standard English stopword list used by both the TF-IDF
// length/stopword filter and RAKE's phrase-boundary splitter.
var stopwords = buildStopwordSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an",
	"and", "any", "are", "as", "at", "be", "because", "been", "before",
	"being", "below", "between", "both", "but", "by", "can", "could", "did",
	"do", "does", "doing", "down", "during", "each", "few", "for", "from",
	"further", "had", "has", "have", "having", "he", "her", "here", "hers",
	"herself", "him", "himself", "his", "how", "i", "if", "in", "into", "is",
	"it", "its", "itself", "just", "me", "more", "most", "my", "myself",
	"need", "no", "nor", "not", "now", "of", "off", "on", "once", "only",
	"or", "other", "our", "ours", "ourselves", "out", "over", "own", "same",
	"she", "should", "so", "some", "such", "than", "that", "the", "their",
	"theirs", "them", "themselves", "then", "there", "these", "they",
	"this", "those", "through", "to", "too", "under", "until", "up", "very",
	"was", "we", "were", "what", "when", "where", "which", "while", "who",
	"whom", "why", "will", "with", "would", "you", "your", "yours",
	"yourself", "yourselves",
})

func buildStopwordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

var (
	pascalCaseRe       = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]*)+\b`)
	snakeCaseRe        = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)
	camelCaseRe        = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:[A-Z][a-z0-9]*)+\b`)
	dotMethodRe        = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\b`)
	scopedMethodRe     = regexp.MustCompile(`\b([A-Za-z_]\w*)::([A-Za-z_]\w*)\b`)
	filePathRe         = regexp.MustCompile(`\b[\w./-]+\.(?:go|ts|tsx|js|jsx|mjs|cjs|py|php|rb|java|kt|cs|swift|rs|c|h|cc|cpp|hpp|json|yaml|yml|toml|kdl|sql|md)\b`)
	pathTokenRe        = regexp.MustCompile(`(?:\b(GET|POST|PUT|PATCH|DELETE)\s+)?(/[\w{}:.\-]+(?:/[\w{}:.\-]+)+)`)
	screamingSnakeRe   = regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+\b`)
	httpStatusRe       = regexp.MustCompile(`\b[45]\d{2}\b`)
	wordRe             = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	apiVersionPrefixRe = regexp.MustCompile(`^/v[0-9]+(?:/|$)`)
)

// changeTypeKeywords are the fixed lists used for change-type detection, in
// declaration (tie-break) order.
var changeTypeKeywords = []struct {
	kind     types.ChangeType
	keywords []string
}{
	{types.ChangeBugfix, []string{"fix", "bug", "bugfix", "issue", "broken", "fail", "failing", "failure", "error", "crash", "regression", "defect"}},
	{types.ChangeFeature, []string{"add", "implement", "new", "feature", "support", "introduce", "create"}},
	{types.ChangeRefactor, []string{"refactor", "cleanup", "clean", "restructure", "simplify", "reorganize", "rename", "extract"}},
	{types.ChangePerf, []string{"performance", "perf", "slow", "optimize", "optimise", "latency", "speed", "throughput", "cache", "memory"}},
	{types.ChangeSecurity, []string{"security", "vulnerability", "vulnerable", "exploit", "injection", "xss", "csrf", "auth", "authorization", "cve"}},
}

// Extract runs the full pipeline over rawText. domains is the active
// Domain/Rule Registry's merged domain list (core + framework + custom,
// minus disabled); engine backs synonym expansion.
func Extract(rawText string, domains []types.Domain, engine *semantic.Engine) Result {
	entities := extractEntities(rawText)

	rawWords := tokenize(rawText)
	filtered := filterWords(rawWords)

	keywords := rankKeywords(filtered)
	keyphrases := rakeKeyphrases(rawText)

	expanded := expandAll(keywords, keyphrases, engine)

	domainNames, domainWeight := detectDomains(rawWords, expanded, domains)
	changeType := detectChangeType(append(append([]string{}, rawWords...), expanded...))

	return Result{
		RawWords:     rawWords,
		Keywords:     expanded,
		Keyphrases:   keyphrases,
		Entities:     entities,
		Domains:      domainNames,
		DomainWeight: domainWeight,
		ChangeType:   changeType,
	}
}

func tokenize(text string) []string {
	return wordRe.FindAllString(text, -1)
}

// filterWords lowercases, drops stopwords, and drops anything shorter than
// minWordLength unless it's on the short technical-term allow-list.
func filterWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(w)
		if stopwords[lw] {
			continue
		}
		if len(lw) < minWordLength && !shortAllowlist[lw] {
			continue
		}
		if isAllDigits(lw) {
			continue
		}
		out = append(out, lw)
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// extractEntities runs the entity-extraction pass over the original-case
// text, before any stopword filtering (spec §4.9 step 1).
func extractEntities(text string) types.Entities {
	e := types.Entities{CaseVariants: make(map[string][]string)}
	seen := make(map[string]bool)

	addClass := func(name string) {
		if name == "" || seen["class:"+name] {
			return
		}
		seen["class:"+name] = true
		e.ClassNames = append(e.ClassNames, name)
		e.CaseVariants[name] = caseVariants(name)
	}
	addMethod := func(name string) {
		if name == "" || seen["method:"+name] {
			return
		}
		seen["method:"+name] = true
		e.MethodNames = append(e.MethodNames, name)
		e.CaseVariants[name] = caseVariants(name)
	}

	for _, m := range pascalCaseRe.FindAllString(text, -1) {
		addClass(m)
	}
	for _, m := range snakeCaseRe.FindAllString(text, -1) {
		if stopwords[m] {
			continue
		}
		addClass(m)
	}
	for _, m := range camelCaseRe.FindAllString(text, -1) {
		addMethod(m)
	}
	for _, m := range dotMethodRe.FindAllStringSubmatch(text, -1) {
		addClass(m[1])
		addMethod(m[2])
	}
	for _, m := range scopedMethodRe.FindAllStringSubmatch(text, -1) {
		addClass(m[1])
		addMethod(m[2])
	}

	e.FilePaths = dedupe(filePathRe.FindAllString(text, -1))

	var routes, apiPaths []string
	for _, m := range pathTokenRe.FindAllStringSubmatch(text, -1) {
		p := m[2]
		if strings.HasPrefix(p, "/api/") || apiVersionPrefixRe.MatchString(p) {
			apiPaths = append(apiPaths, p)
		} else {
			routes = append(routes, p)
		}
	}
	e.Routes = dedupe(routes)
	e.APIPaths = dedupe(apiPaths)

	var errorCodes []string
	errorCodes = append(errorCodes, screamingSnakeRe.FindAllString(text, -1)...)
	errorCodes = append(errorCodes, httpStatusRe.FindAllString(text, -1)...)
	e.ErrorCodes = dedupe(errorCodes)

	return e
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// caseVariants generates the snake_case, camelCase, PascalCase, and
// lower-concatenated forms of a PascalCase/camelCase/snake_case token.
func caseVariants(token string) []string {
	words := splitWords(token)
	if len(words) == 0 {
		return nil
	}

	var snake, camel, pascal, concat strings.Builder
	for i, w := range words {
		lw := strings.ToLower(w)
		if i > 0 {
			snake.WriteByte('_')
		}
		snake.WriteString(lw)
		concat.WriteString(lw)
		pascal.WriteString(capitalize(lw))
		if i == 0 {
			camel.WriteString(lw)
		} else {
			camel.WriteString(capitalize(lw))
		}
	}
	return dedupe([]string{snake.String(), camel.String(), pascal.String(), concat.String()})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// splitWords breaks a PascalCase/camelCase/snake_case/kebab-case token into
// its component words.
func splitWords(token string) []string {
	token = strings.ReplaceAll(token, "-", "_")
	var parts []string
	var cur strings.Builder
	runes := []rune(token)
	for i, r := range runes {
		if r == '_' {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		if i > 0 && unicode.IsUpper(r) && cur.Len() > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// rankKeywords applies a heuristic TF-IDF: with no seeded corpus, "IDF" is
// approximated from surface features (length, identifier shape, digits,
// all-caps), per spec §4.9 step 2.
func rankKeywords(words []string) []string {
	type scored struct {
		word  string
		score float64
		freq  int
	}
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, w := range words {
		if _, ok := counts[w]; !ok {
			order = append(order, w)
		}
		counts[w]++
	}

	scoredWords := make([]scored, 0, len(order))
	for _, w := range order {
		scoredWords = append(scoredWords, scored{word: w, score: keywordHeuristicScore(w, counts[w]), freq: counts[w]})
	}
	sort.SliceStable(scoredWords, func(i, j int) bool {
		return scoredWords[i].score > scoredWords[j].score
	})

	n := len(scoredWords)
	if n > maxKeywords {
		n = maxKeywords
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scoredWords[i].word)
	}
	return out
}

func keywordHeuristicScore(word string, freq int) float64 {
	score := float64(freq)
	score += float64(len(word)) * 0.1
	if strings.ContainsAny(word, "0123456789") {
		score += 0.3
	}
	if strings.Contains(word, "_") {
		score += 0.5
	}
	hasUpper, hasLower := false, false
	for _, r := range word {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if hasUpper && hasLower {
		score += 0.5
	}
	if word == strings.ToUpper(word) && len(word) > 1 {
		score += 0.4
	}
	return score
}

// rakeKeyphrases implements RAKE: split on stopwords/punctuation into
// candidate phrases, score each word by (degree+freq)/freq, phrase score is
// the sum of its word scores, return the top multi-word phrases.
func rakeKeyphrases(text string) []string {
	lower := strings.ToLower(text)
	tokens := wordRe.FindAllString(lower, -1)

	var phrases [][]string
	var cur []string
	for _, t := range tokens {
		if stopwords[t] || len(t) < 2 {
			if len(cur) > 0 {
				phrases = append(phrases, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, t)
		if len(cur) == 4 {
			phrases = append(phrases, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		phrases = append(phrases, cur)
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, phrase := range phrases {
		d := len(phrase) - 1
		for _, w := range phrase {
			freq[w]++
			degree[w] += d
		}
	}

	wordScore := func(w string) float64 {
		f := freq[w]
		if f == 0 {
			return 0
		}
		return float64(degree[w]+f) / float64(f)
	}

	type scoredPhrase struct {
		phrase string
		words  int
		score  float64
	}
	var scoredPhrases []scoredPhrase
	seen := make(map[string]bool)
	for _, phrase := range phrases {
		if len(phrase) < 2 {
			continue
		}
		joined := strings.Join(phrase, " ")
		if seen[joined] {
			continue
		}
		seen[joined] = true
		var s float64
		for _, w := range phrase {
			s += wordScore(w)
		}
		scoredPhrases = append(scoredPhrases, scoredPhrase{phrase: joined, words: len(phrase), score: s})
	}

	sort.SliceStable(scoredPhrases, func(i, j int) bool {
		return scoredPhrases[i].score > scoredPhrases[j].score
	})

	n := len(scoredPhrases)
	if n > maxKeyphrases {
		n = maxKeyphrases
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scoredPhrases[i].phrase)
	}
	return out
}

// expandAll unions keywords, keyphrases, and their synonym expansions.
func expandAll(keywords, keyphrases []string, engine *semantic.Engine) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		if w == "" || seen[w] {
			return
		}
		seen[w] = true
		out = append(out, w)
	}

	for _, kw := range keywords {
		add(kw)
		if engine != nil {
			for _, syn := range engine.Expand(kw) {
				add(syn)
			}
		}
	}
	for _, phrase := range keyphrases {
		for _, w := range strings.Fields(phrase) {
			if stopwords[w] || len(w) < minWordLength {
				continue
			}
			add(w)
			if engine != nil {
				for _, syn := range engine.Expand(w) {
					add(syn)
				}
			}
		}
	}
	return out
}

// detectDomains counts, for each registered domain, how many of keywords
// (raw text words plus expanded keywords) match its keyword list. Domains
// with zero matches are dropped; the rest are sorted by count descending.
func detectDomains(rawWords, expanded []string, domains []types.Domain) ([]string, map[string]int) {
	pool := make(map[string]bool, len(rawWords)+len(expanded))
	for _, w := range rawWords {
		pool[strings.ToLower(w)] = true
	}
	for _, w := range expanded {
		pool[strings.ToLower(w)] = true
	}

	weight := make(map[string]int)
	for _, d := range domains {
		count := 0
		for _, kw := range d.Keywords {
			if pool[strings.ToLower(kw)] {
				count++
			}
		}
		if count > 0 {
			weight[d.Name] = count
		}
	}

	names := make([]string, 0, len(weight))
	for name := range weight {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if weight[names[i]] != weight[names[j]] {
			return weight[names[i]] > weight[names[j]]
		}
		return names[i] < names[j]
	})
	return names, weight
}

// detectChangeType scores each fixed change-type keyword list against pool
// and returns the argmax, tie-broken by declaration order; all-zero yields
// ChangeUnknown.
func detectChangeType(pool []string) types.ChangeType {
	present := make(map[string]bool, len(pool))
	for _, w := range pool {
		present[strings.ToLower(w)] = true
	}

	best := types.ChangeUnknown
	bestScore := 0
	for _, ct := range changeTypeKeywords {
		score := 0
		for _, kw := range ct.keywords {
			if present[kw] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = ct.kind
		}
	}
	return best
}
