// Package scanner implements the File Scanner (spec §4.3): a recursive,
// ignore-aware workspace walk that emits one FileRecord per eligible file.
package scanner

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/types"
)

// languageByExt is the fixed extension table used to classify files. Keys
// are lower-cased, dot-prefixed extensions.
var languageByExt = map[string]string{
	".ts":  "typescript",
	".tsx": "typescript",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",

	".php": "php",

	".py": "python",

	".go": "go",

	".rs": "rust",

	".rb": "ruby",

	".java":  "java",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".cs":    "csharp",
	".swift": "swift",

	".c":   "c",
	".h":   "c",
	".cc":  "cpp",
	".cpp": "cpp",
	".hpp": "cpp",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".kdl":  "kdl",
	".xml":  "xml",
	".html": "html",
	".css":  "css",
	".scss": "css",
	".sql":  "sql",
	".sh":   "shell",
	".bash": "shell",
	".md":   "markdown",
}

// textualAllowlist holds extension-less basenames that are still worth
// indexing even though they carry no recognised extension.
var textualAllowlist = map[string]bool{
	"Makefile":   true,
	"Dockerfile": true,
	"Rakefile":   true,
	"Gemfile":    true,
	"Procfile":   true,
	"LICENSE":    true,
	"README":     true,
	"CHANGELOG":  true,
}

// Scanner walks a workspace and produces eligible FileRecords.
type Scanner struct {
	cfg     *config.Config
	matcher *ignore.Matcher
}

// New builds a Scanner bound to cfg's size/count limits and matcher's ignore
// rules (essential block + user .ctxignore + any rule-contributed blocks).
func New(cfg *config.Config, matcher *ignore.Matcher) *Scanner {
	return &Scanner{cfg: cfg, matcher: matcher}
}

// candidate is a path that survived the walk phase and is queued for
// content reads in the parallel phase.
type candidate struct {
	relPath string
	absPath string
	size    int64
}

// Scan recursively walks root, applying ignore rules and size limits, and
// returns one FileRecord per eligible file. Unreadable files are silently
// skipped; the operation as a whole is total. Output order is not
// significant but is sorted by path for determinism.
func (s *Scanner) Scan(ctx context.Context, root string) ([]types.FileRecord, error) {
	candidates, err := s.walk(root)
	if err != nil {
		return nil, err
	}
	return s.readAll(ctx, candidates)
}

func (s *Scanner) walk(root string) ([]candidate, error) {
	var out []candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are silently skipped
		}
		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if s.matcher.IsIgnored(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !s.cfg.Index.FollowSymlinks {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() == 0 {
			return nil
		}
		if s.cfg.Index.MaxFileSize > 0 && info.Size() > s.cfg.Index.MaxFileSize {
			return nil
		}
		if !eligibleLanguage(relPath) {
			return nil
		}

		out = append(out, candidate{relPath: relPath, absPath: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].relPath < out[j].relPath })
	return out, nil
}

// eligibleLanguage reports whether relPath's language classification admits
// it into the index: either it has a recognised extension, or its basename
// is on the small textual allow-list.
func eligibleLanguage(relPath string) bool {
	_, ok := classify(relPath)
	return ok
}

// classify returns the language for relPath and whether it is eligible.
func classify(relPath string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(relPath))
	if lang, ok := languageByExt[ext]; ok {
		return lang, true
	}
	base := filepath.Base(relPath)
	if textualAllowlist[base] {
		return "text", true
	}
	return "", false
}

// ClassifyLanguage returns relPath's language classification, or "" if the
// scanner wouldn't index it. Exposed for callers (e.g. the Indexer's watch
// mode) that need to classify a single changed path outside a full Scan.
func ClassifyLanguage(relPath string) string {
	lang, _ := classify(relPath)
	return lang
}

// readAll reads content, computes MD5, and emits a FileRecord for each
// candidate, bounded by cfg.Performance.MaxGoroutines parallel workers.
func (s *Scanner) readAll(ctx context.Context, candidates []candidate) ([]types.FileRecord, error) {
	limit := s.cfg.Performance.MaxGoroutines
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	records := make([]types.FileRecord, len(candidates))
	var mu sync.Mutex
	var skipped []int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			rec, ok := s.readOne(c)
			if !ok {
				mu.Lock()
				skipped = append(skipped, i)
				mu.Unlock()
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	skip := make(map[int]bool, len(skipped))
	for _, i := range skipped {
		skip[i] = true
	}
	out := make([]types.FileRecord, 0, len(candidates)-len(skip))
	for i, rec := range records {
		if skip[i] {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Scanner) readOne(c candidate) (types.FileRecord, bool) {
	data, err := os.ReadFile(c.absPath)
	if err != nil {
		return types.FileRecord{}, false
	}
	info, err := os.Stat(c.absPath)
	if err != nil {
		return types.FileRecord{}, false
	}
	lang, _ := classify(c.relPath)
	sum := md5.Sum(data)

	return types.FileRecord{
		Path:     c.relPath,
		Language: lang,
		Size:     info.Size(),
		ModTime:  info.ModTime().UnixMilli(),
		Hash:     hex.EncodeToString(sum[:]),
	}, true
}
