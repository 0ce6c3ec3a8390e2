// Package vcs implements VCS Signals (spec §4.6) and the Diff Analyzer
// (spec §4.11): the workspace's git history shelled out to the git binary,
// never a Go git library, mirroring how the indexer treats version control
// as an external collaborator rather than something to embed.
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/ctxpack/internal/debug"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// excludedFilePatterns mirrors the project's own noise filtering: files that
// change frequently but don't represent meaningful code churn (lockfiles,
// generated output, vendored trees, binary assets) are dropped from the
// churn computation so hotspot ranking isn't dominated by them.
var excludedFilePatterns = []string{
	"CHANGELOG*", "HISTORY*", "CHANGES*", "NEWS*", "RELEASE*",
	"*.md", "*.rst", "*.txt", "docs/*", "doc/*", "documentation/*",
	"*.min.js", "*.min.css", "*.bundle.js", "*.bundle.css", "*.generated.*",
	"*.d.ts", "index.d.ts",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "Gemfile.lock",
	"poetry.lock", "Cargo.lock", "go.sum", "composer.lock",
	"dist/*", "build/*", "out/*", "target/*", ".next/*", "bin/*", "obj/*",
	"vendor/*", "node_modules/*", "third_party/*", "bower_components/*",
	"coverage/*", ".nyc_output/*", "*.lcov",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.svg", "*.webp",
	"*.woff", "*.woff2", "*.ttf", "*.pdf", "*.zip", "*.tar", "*.gz",
	".idea/*", ".vscode/*",
}

func isChurnNoise(filePath string) bool {
	lowerPath := strings.ToLower(filePath)
	lowerBase := strings.ToLower(path.Base(filePath))
	for _, pattern := range excludedFilePatterns {
		pattern = strings.ToLower(pattern)
		if matched, _ := path.Match(pattern, lowerBase); matched {
			return true
		}
		if matched, _ := path.Match(pattern, lowerPath); matched {
			return true
		}
		if rest, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(lowerPath, rest+"/") {
			return true
		}
	}
	return false
}

// Provider wraps git subprocess invocations rooted at a single repository.
// Every call is best-effort: the spec requires VCS Signals to swallow
// failures rather than surface them, since an unavailable or shallow git
// history must never block indexing.
type Provider struct {
	repoRoot string
	timeout  time.Duration
}

// NewProvider resolves root to its git top-level directory. It returns an
// error only when root is not inside a git working tree; callers should
// treat that as "VCS signals unavailable" rather than a fatal condition.
func NewProvider(root string, timeout time.Duration) (*Provider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := runGit(ctx, root, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s: %w", root, err)
	}
	return &Provider{repoRoot: strings.TrimSpace(out), timeout: timeout}, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func (p *Provider) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return runGit(ctx, p.repoRoot, args...)
}

// ComputeSignals produces a VcsSignal for each of paths, best-effort. It
// first batches the repository's six-month commit-churn counts with a
// single `git log` invocation, then fills in per-file commit count and
// last-modified timestamp with one small command per file (spec §4.6). A
// file absent from history (new, untracked, or excluded as churn noise)
// still gets a zero-value signal.
func (p *Provider) ComputeSignals(ctx context.Context, paths []string) map[string]types.VcsSignal {
	out := make(map[string]types.VcsSignal, len(paths))
	for _, fp := range paths {
		out[fp] = types.VcsSignal{FilePath: fp}
	}

	churn, maxCount := p.batchChurn(ctx)
	for fp, count := range churn {
		sig, ok := out[fp]
		if !ok {
			continue
		}
		if maxCount > 0 {
			sig.ChurnScore = float64(count) / float64(maxCount)
		}
		out[fp] = sig
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, fp := range paths {
		fp := fp
		g.Go(func() error {
			count, lastMod, err := p.perFileSignal(gctx, fp)
			if err != nil {
				debug.LogIndexing("vcs per-file signal skipped for %s: %v", fp, err)
				return nil
			}
			sig := out[fp]
			sig.CommitCount = count
			sig.LastModified = lastMod
			out[fp] = sig
			return nil
		})
	}
	_ = g.Wait() // per-file errors are already swallowed individually

	return out
}

// batchChurn enumerates commit counts per file over the last six months with
// a single `git log` call, returning the raw counts and the largest count
// seen (for churnScore normalisation). Failures return an empty map.
func (p *Provider) batchChurn(ctx context.Context) (map[string]int, int) {
	out, err := p.run(ctx, "log", "--since=6.months.ago", "--name-only", "--pretty=format:")
	if err != nil {
		debug.LogIndexing("vcs batch churn unavailable: %v", err)
		return nil, 0
	}

	counts := make(map[string]int)
	maxCount := 0
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isChurnNoise(line) {
			continue
		}
		counts[line]++
		if counts[line] > maxCount {
			maxCount = counts[line]
		}
	}
	return counts, maxCount
}

// perFileSignal runs one small command for commit count and one for
// last-modified timestamp, scoped to a single file.
func (p *Provider) perFileSignal(ctx context.Context, filePath string) (int, string, error) {
	countOut, err := p.run(ctx, "rev-list", "--count", "HEAD", "--", filePath)
	if err != nil {
		return 0, "", err
	}
	count, err := strconv.Atoi(strings.TrimSpace(countOut))
	if err != nil {
		return 0, "", err
	}

	dateOut, err := p.run(ctx, "log", "-1", "--format=%cI", "--", filePath)
	if err != nil {
		return count, "", err
	}
	return count, strings.TrimSpace(dateOut), nil
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// Diff runs "name-status vs ref" and "numstat vs ref" and merges them into
// DiffEntry rows (spec §4.11). An empty ref diffs the working tree against
// the index.
func (p *Provider) Diff(ctx context.Context, ref string) ([]types.DiffEntry, error) {
	nameStatusArgs := []string{"diff", "--name-status", "--no-renames"}
	numstatArgs := []string{"diff", "--numstat", "--no-renames"}
	if ref != "" {
		nameStatusArgs = append(nameStatusArgs, ref)
		numstatArgs = append(numstatArgs, ref)
	}

	nameStatusOut, err := p.run(ctx, nameStatusArgs...)
	if err != nil {
		return nil, fmt.Errorf("git diff --name-status: %w", err)
	}
	numstatOut, err := p.run(ctx, numstatArgs...)
	if err != nil {
		return nil, fmt.Errorf("git diff --numstat: %w", err)
	}

	entries := make(map[string]*types.DiffEntry)
	var order []string

	for _, line := range splitLines(nameStatusOut) {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := parseDiffStatus(fields[0])
		filePath := fields[len(fields)-1]
		entries[filePath] = &types.DiffEntry{File: filePath, Status: status}
		order = append(order, filePath)
	}

	for _, line := range splitLines(numstatOut) {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		deleted, _ := strconv.Atoi(fields[1])
		filePath := fields[2]
		e, ok := entries[filePath]
		if !ok {
			e = &types.DiffEntry{File: filePath, Status: types.DiffModified}
			entries[filePath] = e
			order = append(order, filePath)
		}
		e.Additions = added
		e.Deletions = deleted
	}

	out := make([]types.DiffEntry, 0, len(order))
	for _, fp := range order {
		out = append(out, *entries[fp])
	}
	return out, nil
}

func parseDiffStatus(code string) types.DiffStatus {
	switch code[0] {
	case 'A':
		return types.DiffAdded
	case 'D':
		return types.DiffDeleted
	case 'R', 'C':
		return types.DiffRenamed
	default:
		return types.DiffModified
	}
}

// ChangedLines parses the @@ -a,b +c,d @@ hunks of a zero-context diff
// between file's working-tree content and ref into the concrete set of
// new-side line numbers touched (spec §4.11).
func (p *Provider) ChangedLines(ctx context.Context, filePath, ref string) ([]int, error) {
	args := []string{"diff", "-U0", "--no-renames"}
	if ref != "" {
		args = append(args, ref)
	}
	args = append(args, "--", filePath)

	out, err := p.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("git diff -U0: %w", err)
	}

	var lines []int
	for _, line := range splitLines(out) {
		m := hunkHeaderRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start, _ := strconv.Atoi(m[1])
		count := 1
		if m[2] != "" {
			count, _ = strconv.Atoi(m[2])
		}
		if count == 0 {
			// A pure deletion hunk touches no new-side line; the closest
			// anchor is the line it was deleted before.
			continue
		}
		for i := 0; i < count; i++ {
			lines = append(lines, start+i)
		}
	}
	return lines, nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
