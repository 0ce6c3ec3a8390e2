package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/types"
)

type fakeStore struct {
	files       []types.FileRecord
	symbols     map[string][]types.Symbol
	contentHits map[string][]store.ContentHit
	importsFrom map[string][]types.ImportEdge
	importersOf map[string][]types.ImportEdge
}

func (f *fakeStore) GetAllFiles(ctx context.Context) ([]types.FileRecord, error) { return f.files, nil }
func (f *fakeStore) FindSymbolsByName(ctx context.Context, substr string) ([]types.Symbol, error) {
	return f.symbols[substr], nil
}
func (f *fakeStore) SearchContent(ctx context.Context, query string, limit int) ([]store.ContentHit, error) {
	return f.contentHits[query], nil
}
func (f *fakeStore) GetImportsFrom(ctx context.Context, path string) ([]types.ImportEdge, error) {
	return f.importsFrom[path], nil
}
func (f *fakeStore) GetImportersOf(ctx context.Context, path string) ([]types.ImportEdge, error) {
	return f.importersOf[path], nil
}

func TestDiscover_StacktraceAndDiffProducers(t *testing.T) {
	s := &fakeStore{files: []types.FileRecord{{Path: "internal/store/store.go"}, {Path: "internal/api/handler.go"}}}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())

	task := types.ResolvedTask{
		Stacktrace: []types.StacktraceEntry{{File: "internal/store/store.go", Line: 10}},
		Diff:       []types.DiffEntry{{File: "internal/api/handler.go", Status: types.DiffModified}},
	}
	got, err := eng.Discover(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, got["internal/store/store.go"].StacktraceHit)
	assert.True(t, got["internal/api/handler.go"].DiffHit)
}

func TestDiscover_DiffDeletedEntriesExcluded(t *testing.T) {
	s := &fakeStore{files: []types.FileRecord{{Path: "internal/old.go"}}}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())
	task := types.ResolvedTask{Diff: []types.DiffEntry{{File: "internal/old.go", Status: types.DiffDeleted}}}
	got, err := eng.Discover(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, got["internal/old.go"].DiffHit)
}

func TestDiscover_SymbolProducer(t *testing.T) {
	s := &fakeStore{
		files:   []types.FileRecord{{Path: "internal/auth/login.go"}},
		symbols: map[string][]types.Symbol{"Login": {{FilePath: "internal/auth/login.go", Name: "Login"}}},
	}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())
	task := types.ResolvedTask{SymbolHint: []string{"Login"}}
	got, err := eng.Discover(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, got["internal/auth/login.go"].SymbolMatch)
	assert.True(t, got["internal/auth/login.go"].ExactSymbolMention)
}

func TestDiscover_KeywordFTSProducer(t *testing.T) {
	s := &fakeStore{
		files:       []types.FileRecord{{Path: "internal/billing/invoice.go"}},
		contentHits: map[string][]store.ContentHit{"invoice": {{Path: "internal/billing/invoice.go", Rank: 1.0}}},
	}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())
	task := types.ResolvedTask{Keywords: []string{"invoice"}}
	got, err := eng.Discover(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, got["internal/billing/invoice.go"].KeywordMatch)
}

func TestDiscover_FileHintExactVsPartial(t *testing.T) {
	s := &fakeStore{files: []types.FileRecord{
		{Path: "internal/auth/session.go"},
		{Path: "internal/auth/session_test.go"},
	}}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())
	task := types.ResolvedTask{FileHints: []string{"internal/auth/session.go"}}
	got, err := eng.Discover(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, got["internal/auth/session.go"].FileHintExact)
}

func TestGraphBFS_ExpandsImportNeighborsWithDecay(t *testing.T) {
	s := &fakeStore{
		files: []types.FileRecord{{Path: "a.go"}, {Path: "b.go"}, {Path: "c.go"}},
		importsFrom: map[string][]types.ImportEdge{
			"a.go": {{Source: "a.go", Target: "b.go"}},
			"b.go": {{Source: "b.go", Target: "c.go"}},
		},
	}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())
	candidates := map[string]types.CandidateSignals{"a.go": {StacktraceHit: true}}
	eng.graphBFS(context.Background(), candidates)

	require.True(t, candidates["b.go"].GraphRelated)
	assert.Equal(t, 1, candidates["b.go"].GraphDepth)
	assert.InDelta(t, 1.0, candidates["b.go"].GraphDecay, 0.0001)

	require.True(t, candidates["c.go"].GraphRelated)
	assert.Equal(t, 2, candidates["c.go"].GraphDepth)
	assert.InDelta(t, 0.5, candidates["c.go"].GraphDecay, 0.0001)
}

func TestTwoHopExpansion_ResolvesClassReference(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "internal/api"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "internal/api/handler.go"),
		[]byte("var s = UserService{}\n"), 0o644))

	allFiles := []types.FileRecord{
		{Path: "internal/api/handler.go"},
		{Path: "internal/user/UserService.go"},
	}
	s := &fakeStore{files: allFiles}
	eng := New(s, nil, nil, config.Performance{}, root)
	candidates := map[string]types.CandidateSignals{"internal/api/handler.go": {DiffHit: true}}
	eng.twoHopExpansion(candidates, allFiles)
	assert.True(t, candidates["internal/user/UserService.go"].RelatedFile)
}

func TestPairTestFiles_NormalizedBasenameMatch(t *testing.T) {
	s := &fakeStore{}
	eng := New(s, nil, nil, config.Performance{}, t.TempDir())
	candidates := map[string]types.CandidateSignals{"internal/auth/login.go": {SymbolMatch: true}}
	allFiles := []types.FileRecord{
		{Path: "internal/auth/login_test.go"},
		{Path: "internal/unrelated/other_test.go"},
	}
	eng.pairTestFiles(candidates, allFiles)
	assert.True(t, candidates["internal/auth/login_test.go"].TestFile)
	_, ok := candidates["internal/unrelated/other_test.go"]
	assert.False(t, ok)
}

func TestApplyIgnoreFilter_DropsIgnoredCandidates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ctxignore"), []byte("vendor/**\n"), 0o644))
	matcher, err := ignore.NewFromRoot(root)
	require.NoError(t, err)

	s := &fakeStore{}
	eng := New(s, nil, matcher, config.Performance{}, root)
	candidates := map[string]types.CandidateSignals{
		"vendor/pkg/errors.go":    {},
		"internal/store/store.go": {},
	}
	eng.applyIgnoreFilter(candidates)
	_, ok := candidates["vendor/pkg/errors.go"]
	assert.False(t, ok)
	_, ok = candidates["internal/store/store.go"]
	assert.True(t, ok)
}
