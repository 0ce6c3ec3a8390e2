// Package discovery implements Candidate Discovery (spec §4.13): six
// primary producers fanned out in parallel into a shared `map[path]
// CandidateSignals`, followed by graph BFS, two-hop reference expansion,
// test-file pairing, rule discoveries, and an ignore-set filter.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/debug"
	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/types"
)

const (
	keywordFTSQueries   = 30
	keywordFTSHitsLimit = 20
	minFilenameTermLen  = 3
)

// Store is the subset of internal/store.Store Discovery depends on.
type Store interface {
	GetAllFiles(ctx context.Context) ([]types.FileRecord, error)
	FindSymbolsByName(ctx context.Context, substr string) ([]types.Symbol, error)
	SearchContent(ctx context.Context, query string, limit int) ([]store.ContentHit, error)
	GetImportsFrom(ctx context.Context, path string) ([]types.ImportEdge, error)
	GetImportersOf(ctx context.Context, path string) ([]types.ImportEdge, error)
}

// Engine runs Candidate Discovery for one resolved task.
type Engine struct {
	store         Store
	rulesReg      *rules.Registry
	matcher       *ignore.Matcher
	cfg           config.Performance
	workspaceRoot string
}

func New(store Store, rulesReg *rules.Registry, matcher *ignore.Matcher, cfg config.Performance, workspaceRoot string) *Engine {
	return &Engine{store: store, rulesReg: rulesReg, matcher: matcher, cfg: cfg, workspaceRoot: workspaceRoot}
}

// Discover runs the full pipeline described in spec §4.13 and returns the
// final, ignore-filtered candidate map.
func (e *Engine) Discover(ctx context.Context, task types.ResolvedTask) (map[string]types.CandidateSignals, error) {
	candidates, err := e.runPrimaryProducers(ctx, task)
	if err != nil {
		return nil, err
	}

	allFiles, err := e.store.GetAllFiles(ctx)
	if err != nil {
		return nil, err
	}

	e.graphBFS(ctx, candidates)
	e.twoHopExpansion(candidates, allFiles)
	e.pairTestFiles(candidates, allFiles)

	if e.rulesReg != nil {
		ruleFound := e.rulesReg.Discover(ctx, rules.DiscoveryContext{
			Candidates: candidates,
			Store:      storeAdapter{e.store},
		})
		for path, sig := range ruleFound {
			existing := candidates[path]
			existing.Merge(sig)
			candidates[path] = existing
		}
	}

	e.applyIgnoreFilter(candidates)
	return candidates, nil
}

type storeAdapter struct{ s Store }

func (a storeAdapter) GetAllFiles(ctx context.Context) ([]types.FileRecord, error) {
	return a.s.GetAllFiles(ctx)
}

// runPrimaryProducers fans the six producers out in parallel over a single
// mutex-guarded candidate map (spec §4.13's "per-key OR-merge" discipline).
func (e *Engine) runPrimaryProducers(ctx context.Context, task types.ResolvedTask) (map[string]types.CandidateSignals, error) {
	candidates := make(map[string]types.CandidateSignals)
	var mu sync.Mutex

	merge := func(filePath string, mutate func(*types.CandidateSignals)) {
		mu.Lock()
		defer mu.Unlock()
		sig := candidates[filePath]
		mutate(&sig)
		candidates[filePath] = sig
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.discoverFromStacktrace(task, merge)
		return nil
	})
	g.Go(func() error {
		e.discoverFromDiff(task, merge)
		return nil
	})
	g.Go(func() error {
		return e.discoverFromSymbols(gctx, task, merge)
	})
	g.Go(func() error {
		return e.discoverFromKeywordFTS(gctx, task, merge)
	})
	g.Go(func() error {
		e.discoverFromFileHints(gctx, task, merge)
		return nil
	})
	g.Go(func() error {
		return e.discoverFromFilenamesAndPaths(gctx, task, merge)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (e *Engine) discoverFromStacktrace(task types.ResolvedTask, merge func(string, func(*types.CandidateSignals))) {
	for _, entry := range task.Stacktrace {
		merge(entry.File, func(s *types.CandidateSignals) { s.StacktraceHit = true })
	}
}

func (e *Engine) discoverFromDiff(task types.ResolvedTask, merge func(string, func(*types.CandidateSignals))) {
	for _, entry := range task.Diff {
		if entry.Status == types.DiffDeleted {
			continue
		}
		merge(entry.File, func(s *types.CandidateSignals) { s.DiffHit = true })
	}
}

func (e *Engine) discoverFromSymbols(ctx context.Context, task types.ResolvedTask, merge func(string, func(*types.CandidateSignals))) error {
	symbolTerms := append([]string{}, task.SymbolHint...)
	symbolTerms = append(symbolTerms, task.Entities.ClassNames...)
	symbolTerms = append(symbolTerms, task.Entities.MethodNames...)

	for _, term := range symbolTerms {
		if term == "" {
			continue
		}
		hits, err := e.store.FindSymbolsByName(ctx, term)
		if err != nil {
			debug.LogDiscovery("symbol search for %q failed: %v", term, err)
			continue
		}
		for _, sym := range hits {
			merge(sym.FilePath, func(s *types.CandidateSignals) {
				s.SymbolMatch = true
				s.ExactSymbolMention = true
			})
		}
	}
	return nil
}

func (e *Engine) discoverFromKeywordFTS(ctx context.Context, task types.ResolvedTask, merge func(string, func(*types.CandidateSignals))) error {
	keywords := task.Keywords
	if len(keywords) > keywordFTSQueries {
		keywords = keywords[:keywordFTSQueries]
	}
	for _, kw := range keywords {
		hits, err := e.store.SearchContent(ctx, kw, keywordFTSHitsLimit)
		if err != nil {
			debug.LogDiscovery("FTS query %q failed: %v", kw, err)
			continue
		}
		for _, hit := range hits {
			merge(hit.Path, func(s *types.CandidateSignals) { s.KeywordMatch = true })
		}
	}
	return nil
}

func (e *Engine) discoverFromFileHints(ctx context.Context, task types.ResolvedTask, merge func(string, func(*types.CandidateSignals))) {
	if len(task.FileHints) == 0 {
		return
	}
	allFiles, err := e.store.GetAllFiles(ctx)
	if err != nil {
		debug.LogDiscovery("file hint lookup failed: %v", err)
		return
	}
	for _, hint := range task.FileHints {
		for _, f := range allFiles {
			exact := f.Path == hint
			partial := strings.Contains(filepath.Base(f.Path), hint)
			if exact || partial {
				isExact := exact
				merge(f.Path, func(s *types.CandidateSignals) {
					s.KeywordMatch = true
					if isExact {
						s.FileHintExact = true
					} else {
						s.FileHintHit = true
					}
				})
			}
		}
	}
}

func (e *Engine) discoverFromFilenamesAndPaths(ctx context.Context, task types.ResolvedTask, merge func(string, func(*types.CandidateSignals))) error {
	terms := make(map[string]bool)
	for _, s := range task.SymbolHint {
		terms[s] = true
	}
	for _, s := range task.Entities.ClassNames {
		terms[s] = true
	}
	for _, s := range task.Entities.MethodNames {
		terms[s] = true
	}
	for _, s := range task.Keywords {
		terms[s] = true
	}
	for _, s := range task.Domains {
		terms[s] = true
	}

	allFiles, err := e.store.GetAllFiles(ctx)
	if err != nil {
		return err
	}

	for term := range terms {
		if len(term) < minFilenameTermLen {
			continue
		}
		lowerTerm := strings.ToLower(term)
		for _, f := range allFiles {
			lowerPath := strings.ToLower(f.Path)
			basenameHit := strings.Contains(strings.ToLower(filepath.Base(f.Path)), lowerTerm)
			pathHit := strings.Contains(lowerPath, lowerTerm)
			if basenameHit || pathHit {
				merge(f.Path, func(s *types.CandidateSignals) {
					s.SymbolMatch = true
					if pathHit {
						s.RawPathMatchCount++
					}
					if basenameHit {
						s.BasenameMatchCount++
					}
					s.FilenameMatchCount++
				})
			}
		}
	}
	return nil
}

// graphBFS expands candidates over the import graph, min-wins on depth/decay
// (spec §4.13 step 1).
func (e *Engine) graphBFS(ctx context.Context, candidates map[string]types.CandidateSignals) {
	seeds := make([]string, 0)
	for p, sig := range candidates {
		if sig.StacktraceHit || sig.DiffHit || sig.SymbolMatch || sig.ExactSymbolMention {
			seeds = append(seeds, p)
		}
	}
	if len(seeds) == 0 {
		for p := range candidates {
			seeds = append(seeds, p)
		}
	}
	if len(seeds) == 0 {
		return
	}

	visited := make(map[string]int, len(seeds))
	for _, s := range seeds {
		visited[s] = 0
	}

	frontier := seeds
	depth := 0
	for depth < config.DefaultMaxBFSDepth && len(visited) < config.DefaultMaxBFSNodes {
		depth++
		var next []string
		for _, p := range frontier {
			for _, neighbor := range e.neighbors(ctx, p) {
				if len(visited) >= config.DefaultMaxBFSNodes {
					break
				}
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = depth
				next = append(next, neighbor)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	for p, d := range visited {
		if d == 0 {
			continue // seed itself, not a newly-visited node
		}
		existing := candidates[p]
		if existing.GraphRelated && existing.GraphDepth <= d {
			continue // a shallower depth already won
		}
		existing.GraphRelated = true
		existing.GraphDepth = d
		existing.GraphDecay = 1.0 / float64(d)
		candidates[p] = existing
	}
}

func (e *Engine) neighbors(ctx context.Context, filePath string) []string {
	var out []string
	if edges, err := e.store.GetImportsFrom(ctx, filePath); err == nil {
		for _, edge := range edges {
			out = append(out, edge.Target)
		}
	}
	if edges, err := e.store.GetImportersOf(ctx, filePath); err == nil {
		for _, edge := range edges {
			out = append(out, edge.Source)
		}
	}
	return out
}

// Reference-extraction regexes for two-hop expansion (spec §4.13 step 2):
// class names, method references, and file paths mentioned in a file's own
// content, independent of language.
var (
	refClassRe      = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*(?:Controller|Service|Repository|Model|Handler|Manager|Provider|Factory))\b`)
	refScopeRe      = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*)::`)
	refNewRe        = regexp.MustCompile(`\bnew\s+([A-Z][A-Za-z0-9]*)\s*\(`)
	refExtendsRe    = regexp.MustCompile(`\b(?:extends|implements)\s+([A-Za-z0-9_\\]+)`)
	refUseRe        = regexp.MustCompile(`(?m)^\s*use\s+([\w\\]+)`)
	refArrowCallRe  = regexp.MustCompile(`->(\w+)\s*\(`)
	refStaticCallRe = regexp.MustCompile(`::(\w+)\s*\(`)
	refFuncCallRe   = regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`)
	refBacktickRe   = regexp.MustCompile("`([\\w./\\\\-]+)`")
	refFilePathRe   = regexp.MustCompile(`\b[\w./-]+\.(?:go|ts|tsx|js|jsx|py|rb|php|java|rs)\b`)
)

// twoHopExpansion reads each current candidate's content, extracts
// class/method/path references, and resolves any that match an indexed
// file (by bare basename or by basename-without-extension, since class and
// method references never carry a file extension) into a `relatedFile`
// signal, even when the target wasn't already a candidate.
func (e *Engine) twoHopExpansion(candidates map[string]types.CandidateSignals, allFiles []types.FileRecord) {
	initial := make([]string, 0, len(candidates))
	for p := range candidates {
		initial = append(initial, p)
	}

	byBasename := make(map[string]string, len(allFiles))
	byStem := make(map[string]string, len(allFiles))
	for _, f := range allFiles {
		base := strings.ToLower(filepath.Base(f.Path))
		byBasename[base] = f.Path
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		byStem[stem] = f.Path
	}

	for _, p := range initial {
		raw, err := os.ReadFile(filepath.Join(e.workspaceRoot, p))
		if err != nil {
			continue
		}
		refs := extractReferences(string(raw))
		for _, ref := range refs {
			lowerRef := strings.ToLower(ref)
			target, ok := byBasename[lowerRef]
			if !ok {
				target, ok = byStem[lowerRef]
			}
			if !ok || target == p {
				continue
			}
			sig := candidates[target]
			sig.RelatedFile = true
			candidates[target] = sig
		}
	}
}

func extractReferences(content string) []string {
	var refs []string
	for _, re := range []*regexp.Regexp{refClassRe, refScopeRe, refNewRe, refExtendsRe, refUseRe, refArrowCallRe, refStaticCallRe, refFuncCallRe} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			refs = append(refs, m[1])
		}
	}
	for _, m := range refBacktickRe.FindAllStringSubmatch(content, -1) {
		refs = append(refs, m[1])
	}
	refs = append(refs, refFilePathRe.FindAllString(content, -1)...)
	return refs
}

// testPathSegments is used to normalise a test path into the basename it
// likely mirrors (spec §4.13 step 3).
var testPathSegments = []string{"test/", "spec/", "__tests__/"}

func normalizeTestBase(p string) string {
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	base = strings.TrimPrefix(base, "Test")
	base = strings.TrimSuffix(base, "Test")
	base = strings.TrimSuffix(base, "_test")
	base = strings.TrimPrefix(base, "test_")
	base = strings.TrimSuffix(base, ".test")
	base = strings.TrimSuffix(base, ".spec")
	return strings.ToLower(base)
}

func isTestPath(p string) bool {
	lower := strings.ToLower(p)
	for _, seg := range testPathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	base := strings.ToLower(filepath.Base(p))
	return strings.Contains(base, "test") || strings.Contains(base, "spec")
}

// pairTestFiles promotes any file among allFiles whose normalised basename
// maps onto an existing candidate to a testFile candidate.
func (e *Engine) pairTestFiles(candidates map[string]types.CandidateSignals, allFiles []types.FileRecord) {
	candidateBases := make(map[string]bool, len(candidates))
	for p := range candidates {
		ext := filepath.Ext(p)
		candidateBases[strings.ToLower(strings.TrimSuffix(filepath.Base(p), ext))] = true
	}

	for _, f := range allFiles {
		if _, already := candidates[f.Path]; already {
			continue
		}
		if !isTestPath(f.Path) {
			continue
		}
		if candidateBases[normalizeTestBase(f.Path)] {
			sig := candidates[f.Path]
			sig.TestFile = true
			candidates[f.Path] = sig
		}
	}
}

func (e *Engine) applyIgnoreFilter(candidates map[string]types.CandidateSignals) {
	if e.matcher == nil {
		return
	}
	for p := range candidates {
		if e.matcher.IsIgnored(p) {
			delete(candidates, p)
		}
	}
}
