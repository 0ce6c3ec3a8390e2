// Package resolver implements the Task Resolver façade (spec §2, §6): it
// composes the Keyword Extractor, Stacktrace Parser, Domain/Rule Registry,
// Candidate Discovery, Scorer, and Excerpt Extractor into one `Resolve`
// call that turns a task description into a ranked, excerpted pack.
package resolver

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/debug"
	"github.com/standardbeagle/ctxpack/internal/discovery"
	"github.com/standardbeagle/ctxpack/internal/excerpt"
	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/keywords"
	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/scorer"
	"github.com/standardbeagle/ctxpack/internal/semantic"
	"github.com/standardbeagle/ctxpack/internal/stacktrace"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/types"
	"github.com/standardbeagle/ctxpack/internal/vcs"
)

// gitHotspotChurnThreshold marks a candidate as a git hotspot once its
// churn score crosses this fraction of the workspace's busiest file,
// matching the Scorer's own churn-bonus threshold.
const gitHotspotChurnThreshold = 0.5

// Input is everything a caller (CLI or MCP tool) may supply about a task.
// Only Description is required; the rest are optional evidence sources
// that sharpen Discovery and Scoring when present.
type Input struct {
	Description    string
	StacktraceText string
	StacktraceSince string
	DiffRef        string
	FileHints      []string
	SymbolHints    []string
}

// File is one selected, excerpted result file.
type File struct {
	Path      string
	Score     float64
	Reasons   []string
	Content   string
	Truncated bool
}

// Result is the Task Resolver's full output, ready to be written out as a
// pack (internal/pack) or returned from an MCP tool call.
type Result struct {
	Task  types.ResolvedTask
	Files []File
}

// Resolver ties the pipeline stages to one workspace's Store and config.
type Resolver struct {
	cfg         *config.Config
	store       *store.Store
	rulesReg    *rules.Registry
	matcher     *ignore.Matcher
	semanticEng *semantic.Engine
	vcsProvider *vcs.Provider
	discovery   *discovery.Engine
	scorer      *scorer.Scorer
	excerpt     *excerpt.Extractor
}

// New builds a Resolver. rulesReg should already be probed against the
// workspace (via rules.NewRegistry) so its matched domains and ignore
// patterns are available to Discovery and the Keyword Extractor.
func New(cfg *config.Config, st *store.Store, rulesReg *rules.Registry, matcher *ignore.Matcher, semanticEng *semantic.Engine) *Resolver {
	gitTimeout := time.Duration(cfg.Performance.GitTimeoutSec) * time.Second
	if gitTimeout <= 0 {
		gitTimeout = 10 * time.Second
	}
	vcsProvider, err := vcs.NewProvider(cfg.Project.Root, gitTimeout)
	if err != nil {
		debug.LogIndexing("vcs provider unavailable for resolver: %v", err)
		vcsProvider = nil
	}

	return &Resolver{
		cfg:         cfg,
		store:       st,
		rulesReg:    rulesReg,
		matcher:     matcher,
		semanticEng: semanticEng,
		vcsProvider: vcsProvider,
		discovery:   discovery.New(st, rulesReg, matcher, cfg.Performance, cfg.Project.Root),
		scorer:      scorer.New(cfg.Scoring),
		excerpt:     excerpt.New(cfg.Excerpt),
	}
}

// Resolve runs the full pipeline: Keyword Extractor + Stacktrace Parser +
// Diff Analyzer produce a ResolvedTask, Candidate Discovery fans out over
// the Store, the Scorer ranks and selects, and the Excerpt Extractor
// renders each selected file.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Result, error) {
	task, err := r.resolveTask(ctx, in)
	if err != nil {
		return Result{}, err
	}

	candidates, err := r.discovery.Discover(ctx, task)
	if err != nil {
		return Result{}, err
	}

	var vcsSignals map[string]types.VcsSignal
	if r.vcsProvider != nil {
		paths := make([]string, 0, len(candidates))
		for p := range candidates {
			paths = append(paths, p)
		}
		vcsSignals = r.vcsProvider.ComputeSignals(ctx, paths)
		for p, sig := range vcsSignals {
			if sig.ChurnScore > gitHotspotChurnThreshold {
				c := candidates[p]
				c.GitHotspot = true
				candidates[p] = c
			}
		}
	}

	ranked := r.scorer.Score(candidates, task, vcsSignals)
	selected := r.scorer.Select(ranked, candidates, task.Domains)

	files := make([]File, 0, len(selected))
	for _, sel := range selected {
		sig := candidates[sel.Path]
		f, err := r.renderFile(sel.Path, sig, task, sel)
		if err != nil {
			debug.LogIndexing("excerpt render failed for %s: %v", sel.Path, err)
			continue
		}
		files = append(files, f)
	}

	return Result{Task: task, Files: files}, nil
}

// resolveTask runs the Keyword Extractor over in.Description, parses any
// supplied stacktrace text, loads the diff against in.DiffRef (if given),
// and folds the Domain/Rule Registry's domains into the keyword
// extractor's domain-detection pass.
func (r *Resolver) resolveTask(ctx context.Context, in Input) (types.ResolvedTask, error) {
	domains := r.rulesReg.Domains()
	kwResult := keywords.Extract(in.Description, domains, r.semanticEng)

	task := types.ResolvedTask{
		RawText:      in.Description,
		RawWords:     kwResult.RawWords,
		Keywords:     kwResult.Keywords,
		Keyphrases:   kwResult.Keyphrases,
		Entities:     kwResult.Entities,
		Domains:      kwResult.Domains,
		DomainWeight: kwResult.DomainWeight,
		ChangeType:   kwResult.ChangeType,
		FileHints:    in.FileHints,
		SymbolHint:   in.SymbolHints,
	}

	if in.StacktraceText != "" {
		entries, err := stacktrace.Parse(in.StacktraceText, in.StacktraceSince, time.Now())
		if err != nil {
			debug.LogIndexing("stacktrace parse failed: %v", err)
		} else {
			task.Stacktrace = entries
		}
	}

	if in.DiffRef != "" && r.vcsProvider != nil {
		entries, err := r.vcsProvider.Diff(ctx, in.DiffRef)
		if err != nil {
			debug.LogIndexing("diff analysis failed for ref %s: %v", in.DiffRef, err)
		} else {
			task.Diff = entries
		}
	}

	task.Confidence = computeConfidence(task)
	return task, nil
}

func computeConfidence(task types.ResolvedTask) types.Confidence {
	c := types.Confidence{
		HasStacktrace: len(task.Stacktrace) > 0,
		HasDiff:       len(task.Diff) > 0,
		HasFileHints:  len(task.FileHints) > 0,
		HasSymbols:    len(task.SymbolHint) > 0 || len(task.Entities.ClassNames) > 0 || len(task.Entities.MethodNames) > 0,
		HasKeywords:   len(task.Keywords) > 0,
	}
	signals := 0
	total := 5.0
	for _, b := range []bool{c.HasStacktrace, c.HasDiff, c.HasFileHints, c.HasSymbols, c.HasKeywords} {
		if b {
			signals++
		}
	}
	c.Overall = float64(signals) / total
	return c
}

// renderFile resolves path's full content and stored symbol set and hands
// them to the Excerpt Extractor, computing highlight lines from whichever
// evidence (diff, stacktrace) produced a hit on this candidate.
func (r *Resolver) renderFile(path string, sig types.CandidateSignals, task types.ResolvedTask, sel scorer.Scored) (File, error) {
	content, err := os.ReadFile(filepath.Join(r.cfg.Project.Root, path))
	if err != nil {
		return File{}, err
	}

	symbols, err := r.store.GetSymbolsByFile(context.Background(), path)
	if err != nil {
		debug.LogIndexing("symbol lookup failed for %s: %v", path, err)
	}

	var highlights []int
	for _, d := range task.Diff {
		if d.File == path {
			highlights = append(highlights, diffHighlightLines(d)...)
		}
	}
	for _, st := range task.Stacktrace {
		if st.File == path {
			highlights = append(highlights, st.Line)
		}
	}

	ex := r.excerpt.Extract(path, string(content), symbols, sig.SymbolMatch, highlights)
	return File{
		Path:      path,
		Score:     sel.Score,
		Reasons:   sel.Reasons,
		Content:   ex.Content,
		Truncated: ex.Truncated,
	}, nil
}

// diffHighlightLines approximates the changed line range for a DiffEntry
// the Diff Analyzer didn't resolve to an exact per-line list: it highlights
// from line 1 through the reported addition count, which is a coarse stand-
// in until Resolver threads vcs.Provider.ChangedLines through per-file.
func diffHighlightLines(d types.DiffEntry) []int {
	if d.Additions <= 0 {
		return nil
	}
	lines := make([]int, 0, d.Additions)
	for i := 1; i <= d.Additions; i++ {
		lines = append(lines, i)
	}
	return lines
}
