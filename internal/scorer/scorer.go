// Package scorer implements the Scorer (spec §4.14): a weighted,
// multi-signal ranking over Candidate Discovery's output, followed by
// quota-based slot selection and final max-normalisation.
package scorer

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// Scored is one ranked candidate, with the weight-table reasons that fed
// its score (used for excerpt/report rendering).
type Scored struct {
	Path    string
	Score   float64
	Reasons []string
}

// Scorer ranks and selects candidates per spec §4.14.
type Scorer struct {
	cfg config.Scoring
}

func New(cfg config.Scoring) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the weighted score for every candidate, applies the
// bonus multipliers, sorts best-first, and returns the full ranked slice
// (selection/quota logic lives in Select).
func (s *Scorer) Score(candidates map[string]types.CandidateSignals, task types.ResolvedTask, vcs map[string]types.VcsSignal) []Scored {
	totalDomainWeight := 0
	for _, w := range task.DomainWeight {
		totalDomainWeight += w
	}

	sameDirAsHit := make(map[string]bool)
	for p, sig := range candidates {
		if sig.StacktraceHit || sig.DiffHit {
			sameDirAsHit[filepath.Dir(p)] = true
		}
	}

	out := make([]Scored, 0, len(candidates))
	for p, sig := range candidates {
		score, reasons := s.scoreOne(p, sig, task, vcs[p], totalDomainWeight, sameDirAsHit)
		out = append(out, Scored{Path: p, Score: score, Reasons: reasons})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Scorer) scoreOne(p string, sig types.CandidateSignals, task types.ResolvedTask, vcsSig types.VcsSignal, totalDomainWeight int, sameDirAsHit map[string]bool) (float64, []string) {
	var score float64
	var reasons []string

	add := func(weight float64, hit bool, reason string) {
		if !hit {
			return
		}
		score += weight
		reasons = append(reasons, reason)
	}

	add(s.cfg.WeightFileHintExact, sig.FileHintExact, "exact file hint")
	add(s.cfg.WeightFileHintHit, sig.FileHintHit, "partial file hint")
	add(s.cfg.WeightStacktraceHit, sig.StacktraceHit, "stacktrace frame")
	add(s.cfg.WeightDiffHit, sig.DiffHit, "changed in diff")
	add(s.cfg.WeightSymbolMatch, sig.SymbolMatch, "symbol match")
	add(s.cfg.WeightKeywordMatch, sig.KeywordMatch, "keyword match")
	add(s.cfg.WeightTestFile, sig.TestFile, "paired test file")
	add(s.cfg.WeightGitHotspot, sig.GitHotspot, "git hotspot")
	add(s.cfg.WeightRelatedFile, sig.RelatedFile, "related file")
	add(s.cfg.WeightExampleUsage, sig.ExampleUsage, "example usage")

	if sig.RawPathMatchCount > 0 {
		n := sig.RawPathMatchCount
		if n > 3 {
			n = 3
		}
		weight := s.cfg.WeightRawPathMatch * float64(n)
		score += weight
		reasons = append(reasons, "raw path match")
	}

	dw := domainWeight(p, task)
	if sig.GraphRelated {
		weight := s.cfg.WeightGraphRelated * dw * sig.GraphDecay
		score += weight
		reasons = append(reasons, "graph related")
	}

	score *= s.entryPointBonus(p, sig)
	score *= s.modelFileBonus(p)
	if sig.SymbolMatch {
		score *= 1.25
	}
	if totalDomainWeight > 0 {
		score *= 1 + 0.25*dw
	}

	if sig.RawPathMatchCount >= 2 {
		score *= math.Pow(1.4, float64(sig.RawPathMatchCount-1))
	}
	if sig.FilenameMatchCount >= 2 {
		score *= math.Pow(1.2, float64(sig.FilenameMatchCount-1))
		if sig.FilenameMatchCount >= 4 {
			score *= 1.3
		}
	}
	if sig.BasenameMatchCount >= 2 && sig.RawPathMatchCount >= 1 {
		score *= math.Pow(1.5, float64(sig.BasenameMatchCount-1))
	}

	if countTrueSignals(sig) >= 3 {
		score *= 1.15
	}
	if sameDirAsHit[filepath.Dir(p)] && !sig.StacktraceHit && !sig.DiffHit {
		score *= 1.1
	}
	if vcsSig.ChurnScore > 0.5 {
		score *= 1.1
	}

	return score, reasons
}

func domainWeight(filePath string, task types.ResolvedTask) float64 {
	if len(task.DomainWeight) == 0 {
		return 1.0
	}
	lowerPath := strings.ToLower(filePath)
	total := 0
	matched := 0
	for domain, weight := range task.DomainWeight {
		total += weight
		if strings.Contains(lowerPath, strings.ToLower(domain)) {
			matched += weight
		}
	}
	if total == 0 {
		return 1.0
	}
	return math.Max(0.2, float64(matched)/float64(total))
}

var entryPointSegments = []string{"controller", "handler", "middleware", "routes"}

func (s *Scorer) entryPointBonus(p string, sig types.CandidateSignals) float64 {
	if !isEntryPoint(p) {
		return 1.0
	}
	if sig.FileHintHit || sig.StacktraceHit || sig.DiffHit || sig.RawPathMatchCount >= 1 || sig.ExactSymbolMention {
		return 1.3
	}
	return 1.1
}

func isEntryPoint(p string) bool {
	lower := strings.ToLower(p)
	for _, seg := range entryPointSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	base := strings.ToLower(filepath.Base(p))
	for _, prefix := range []string{"index.", "main.", "app."} {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

func (s *Scorer) modelFileBonus(p string) float64 {
	lower := strings.ToLower(p)
	if strings.Contains(lower, "models/") || strings.Contains(lower, "entities/") {
		return 1.2
	}
	base := strings.ToLower(filepath.Base(p))
	if strings.Contains(base, ".model.") || strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "model") {
		return 1.2
	}
	if strings.Contains(base, ".entity.") || strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), "entity") {
		return 1.2
	}
	return 1.0
}

func countTrueSignals(sig types.CandidateSignals) int {
	n := 0
	for _, b := range []bool{
		sig.StacktraceHit, sig.DiffHit, sig.FileHintExact, sig.FileHintHit,
		sig.SymbolMatch, sig.ExactSymbolMention, sig.KeywordMatch, sig.GraphRelated,
		sig.TestFile, sig.GitHotspot, sig.RelatedFile, sig.ExampleUsage,
	} {
		if b {
			n++
		}
	}
	return n
}

// Select applies spec §4.14's reserved-slot/quota selection over a score-
// sorted candidate list, then max-normalises the selected set's scores.
// domains is the resolved task's detected domain names, used to decide
// whether a config file is relevant enough to fill the config quota.
func (s *Scorer) Select(ranked []Scored, candidates map[string]types.CandidateSignals, domains []string) []Scored {
	maxFiles := s.cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = config.DefaultMaxFiles
	}

	var selected []Scored
	seen := make(map[string]bool)

	// Step 1: reserved slots.
	for _, c := range ranked {
		sig := candidates[c.Path]
		if (sig.FileHintExact || sig.ExactSymbolMention) && !sig.TestFile {
			selected = append(selected, c)
			seen[c.Path] = true
		}
	}

	remaining := maxFiles - len(selected)
	if remaining <= 0 {
		return normalize(capSlice(selected, maxFiles))
	}

	otherBudget := int(math.Floor(float64(remaining) * s.cfg.OtherQuota))
	testBudget := 0
	configBudget := 0
	if s.cfg.EnableTests {
		testBudget = int(math.Floor(float64(remaining) * s.cfg.TestQuota))
	}
	if s.cfg.EnableConfig {
		configBudget = int(math.Floor(float64(remaining) * s.cfg.ConfigQuota))
	}

	// Step 2: other non-test, non-config files by score.
	otherCount := 0
	for _, c := range ranked {
		if otherCount >= otherBudget {
			break
		}
		if seen[c.Path] {
			continue
		}
		sig := candidates[c.Path]
		if sig.TestFile || isConfigFile(c.Path) {
			continue
		}
		selected = append(selected, c)
		seen[c.Path] = true
		otherCount++
	}

	// Step 3: related test files.
	if s.cfg.EnableTests {
		includedBases := includedBasenames(selected)
		testCount := 0
		for _, c := range ranked {
			if testCount >= testBudget {
				break
			}
			if seen[c.Path] {
				continue
			}
			sig := candidates[c.Path]
			if !sig.TestFile {
				continue
			}
			if !relatesToAny(c.Path, includedBases) {
				continue
			}
			selected = append(selected, c)
			seen[c.Path] = true
			testCount++
		}
	}

	// Step 4: config files referencing a detected domain.
	if s.cfg.EnableConfig {
		configCount := 0
		for _, c := range ranked {
			if configCount >= configBudget {
				break
			}
			if seen[c.Path] {
				continue
			}
			if !isConfigFile(c.Path) {
				continue
			}
			if !referencesDomain(c.Path, domains) {
				continue
			}
			selected = append(selected, c)
			seen[c.Path] = true
			configCount++
		}
	}

	return normalize(capSlice(selected, maxFiles))
}

func capSlice(selected []Scored, max int) []Scored {
	if len(selected) > max {
		return selected[:max]
	}
	return selected
}

func normalize(selected []Scored) []Scored {
	if len(selected) == 0 {
		return selected
	}
	top := selected[0].Score
	for _, c := range selected {
		if c.Score > top {
			top = c.Score
		}
	}
	if top <= 0 {
		return selected
	}
	for i := range selected {
		selected[i].Score = selected[i].Score / top
	}
	return selected
}

var configBasenames = []string{
	"package.json", "composer.json", "go.mod", "cargo.toml", "pyproject.toml",
	"tsconfig.json", ".env", "config.yaml", "config.yml", "settings.py",
}

func isConfigFile(p string) bool {
	base := strings.ToLower(filepath.Base(p))
	for _, c := range configBasenames {
		if base == c {
			return true
		}
	}
	return strings.Contains(base, "config") || strings.Contains(base, "settings")
}

func referencesDomain(p string, domains []string) bool {
	lower := strings.ToLower(p)
	for _, d := range domains {
		if strings.Contains(lower, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

func includedBasenames(selected []Scored) map[string]bool {
	out := make(map[string]bool, len(selected))
	for _, c := range selected {
		ext := filepath.Ext(c.Path)
		out[strings.ToLower(strings.TrimSuffix(filepath.Base(c.Path), ext))] = true
	}
	return out
}

func relatesToAny(testPath string, bases map[string]bool) bool {
	base := strings.ToLower(filepath.Base(testPath))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.TrimSuffix(stem, "_test")
	stem = strings.TrimSuffix(stem, ".test")
	stem = strings.TrimSuffix(stem, ".spec")
	stem = strings.TrimPrefix(stem, "test_")
	return bases[stem]
}
