package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGetFile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := types.FileRecord{Path: "src/main.go", Language: "go", Size: 100, ModTime: 1000, Hash: "abc"}
	require.NoError(t, s.UpsertFile(ctx, rec))

	got, found, err := s.GetFile(ctx, "src/main.go")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)

	rec.Hash = "def"
	require.NoError(t, s.UpsertFile(ctx, rec))
	got, found, err = s.GetFile(ctx, "src/main.go")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "def", got.Hash)

	_, found, err = s.GetFile(ctx, "missing.go")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetAllFiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "b.go"}))
	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))

	files, err := s.GetAllFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, "b.go", files[1].Path)
}

func TestDeleteFileCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))
	_, err := s.InsertSymbol(ctx, types.Symbol{FilePath: "a.go", Name: "Foo", Kind: types.KindFunction, StartLine: 1, EndLine: 3})
	require.NoError(t, err)
	_, err = s.InsertImport(ctx, types.ImportEdge{Source: "a.go", Target: "b.go"})
	require.NoError(t, err)
	require.NoError(t, s.UpsertVcsSignal(ctx, types.VcsSignal{FilePath: "a.go", CommitCount: 3}))
	require.NoError(t, s.IndexFileContent(ctx, "a.go", "package main"))

	require.NoError(t, s.DeleteFile(ctx, "a.go"))

	_, found, err := s.GetFile(ctx, "a.go")
	require.NoError(t, err)
	assert.False(t, found)

	syms, err := s.GetSymbolsByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, syms)

	edges, err := s.GetImportsFrom(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, edges)

	_, found, err = s.GetVcsSignal(ctx, "a.go")
	require.NoError(t, err)
	assert.False(t, found)

	hits, err := s.SearchContent(ctx, "package", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSymbols(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))
	_, err := s.InsertSymbol(ctx, types.Symbol{FilePath: "a.go", Name: "HandleRequest", Kind: types.KindFunction, StartLine: 10, EndLine: 20})
	require.NoError(t, err)
	_, err = s.InsertSymbol(ctx, types.Symbol{FilePath: "a.go", Name: "handleOther", Kind: types.KindFunction, StartLine: 30, EndLine: 40})
	require.NoError(t, err)

	byFile, err := s.GetSymbolsByFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, byFile, 2)
	assert.Equal(t, "HandleRequest", byFile[0].Name)

	matches, err := s.FindSymbolsByName(ctx, "handle")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	require.NoError(t, s.ClearSymbolsForFile(ctx, "a.go"))
	byFile, err = s.GetSymbolsByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, byFile)
}

func TestImports(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))
	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "b.go"}))
	_, err := s.InsertImport(ctx, types.ImportEdge{Source: "a.go", Target: "b.go", Symbol: "Helper"})
	require.NoError(t, err)

	from, err := s.GetImportsFrom(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "b.go", from[0].Target)

	into, err := s.GetImportersOf(ctx, "b.go")
	require.NoError(t, err)
	require.Len(t, into, 1)
	assert.Equal(t, "a.go", into[0].Source)

	require.NoError(t, s.ClearImportsForFile(ctx, "a.go"))
	from, err = s.GetImportsFrom(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, from)
}

func TestVcsSignal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))
	require.NoError(t, s.UpsertVcsSignal(ctx, types.VcsSignal{FilePath: "a.go", CommitCount: 5, ChurnScore: 0.4}))

	v, found, err := s.GetVcsSignal(ctx, "a.go")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, v.CommitCount)

	require.NoError(t, s.UpsertVcsSignal(ctx, types.VcsSignal{FilePath: "a.go", CommitCount: 9, ChurnScore: 0.9}))
	v, _, err = s.GetVcsSignal(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 9, v.CommitCount)
}

func TestSearchContentToleratesPunctuation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))
	require.NoError(t, s.IndexFileContent(ctx, "a.go", `func test() { fmt.Println("hi") }`))
	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "b.go"}))
	require.NoError(t, s.IndexFileContent(ctx, "b.go", `package main`))

	hits, err := s.SearchContent(ctx, `test()`, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "a.go", hits[0].Path)

	hits, err = s.SearchContent(ctx, `"quoted"`, 10)
	require.NoError(t, err)
	assert.Empty(t, hits) // no error even though nothing matches
}

func TestClearAndStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFile(ctx, types.FileRecord{Path: "a.go"}))
	_, err := s.InsertSymbol(ctx, types.Symbol{FilePath: "a.go", Name: "Foo", Kind: types.KindFunction})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.SymbolCount)

	require.NoError(t, s.Clear(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FileCount)
	assert.Equal(t, 0, stats.SymbolCount)
}
