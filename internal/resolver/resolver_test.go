package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/semantic"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/symbols"
	"github.com/standardbeagle/ctxpack/internal/types"
)

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func newTestResolver(t *testing.T, root string) (*Resolver, *store.Store) {
	t.Helper()
	cfg := config.Default(root)
	cfg.Project.Root = root

	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	matcher := ignore.New()
	reg := rules.NewRegistry(root, rules.BuiltinRules(), nil)
	eng := semantic.NewEngine(nil)

	return New(cfg, st, reg, matcher, eng), st
}

func indexFile(t *testing.T, ctx context.Context, st *store.Store, root, relPath, content string) {
	t.Helper()
	writeFile(t, root, relPath, content)
	rec := types.FileRecord{Path: relPath, Language: "go", Size: int64(len(content))}
	require.NoError(t, st.UpsertFile(ctx, rec))
	require.NoError(t, st.IndexFileContent(ctx, relPath, content))
	for _, sym := range symbols.Extract(relPath, "go", content) {
		_, err := st.InsertSymbol(ctx, sym)
		require.NoError(t, err)
	}
}

func TestResolve_FileHintSurfacesExactMatch(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	r, st := newTestResolver(t, root)
	indexFile(t, ctx, st, root, "internal/auth/login.go", "package auth\n\nfunc Login() {}\n")

	result, err := r.Resolve(ctx, Input{
		Description: "fix the login bug",
		FileHints:   []string{"internal/auth/login.go"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Files)
	assert.Equal(t, "internal/auth/login.go", result.Files[0].Path)
	assert.Contains(t, result.Files[0].Content, "func Login")
}

func TestResolve_KeywordMatchSurfacesRelevantFile(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	r, st := newTestResolver(t, root)
	indexFile(t, ctx, st, root, "internal/billing/invoice.go", "package billing\n\nfunc Invoice() {}\n")

	result, err := r.Resolve(ctx, Input{Description: "investigate invoice calculation"})
	require.NoError(t, err)
	var paths []string
	for _, f := range result.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "internal/billing/invoice.go")
}

func TestResolve_StacktraceTextParsedIntoTask(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	r, st := newTestResolver(t, root)
	indexFile(t, ctx, st, root, "internal/worker/run.go", "package worker\n\nfunc Run() {}\n")

	trace := "panic: nil pointer\n\tinternal/worker/run.go:5 +0x10\n"
	result, err := r.Resolve(ctx, Input{Description: "crash on startup", StacktraceText: trace})
	require.NoError(t, err)
	require.Len(t, result.Task.Stacktrace, 1)
	assert.Equal(t, "internal/worker/run.go", result.Task.Stacktrace[0].File)
}

func TestComputeConfidence_ReflectsAvailableSignals(t *testing.T) {
	task := types.ResolvedTask{
		FileHints: []string{"a.go"},
		Keywords:  []string{"billing"},
	}
	c := computeConfidence(task)
	assert.True(t, c.HasFileHints)
	assert.True(t, c.HasKeywords)
	assert.False(t, c.HasStacktrace)
	assert.InDelta(t, 0.4, c.Overall, 0.0001)
}

func TestDiffHighlightLines_CoarseFromAdditions(t *testing.T) {
	lines := diffHighlightLines(types.DiffEntry{File: "a.go", Additions: 3})
	assert.Equal(t, []int{1, 2, 3}, lines)
}

func TestDiffHighlightLines_NoAdditionsYieldsNil(t *testing.T) {
	lines := diffHighlightLines(types.DiffEntry{File: "a.go", Additions: 0})
	assert.Nil(t, lines)
}
