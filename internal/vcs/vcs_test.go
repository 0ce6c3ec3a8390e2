package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/types"
)

func runGitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGitCmd(t, dir, "init", "-q")
	runGitCmd(t, dir, "config", "user.email", "test@example.com")
	runGitCmd(t, dir, "config", "user.name", "Test")

	write := func(rel, content string) {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	write("main.go", "package main\n\nfunc main() {}\n")
	write("go.sum", "noise\n")
	runGitCmd(t, dir, "add", ".")
	runGitCmd(t, dir, "commit", "-q", "-m", "initial")

	write("main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	runGitCmd(t, dir, "add", ".")
	runGitCmd(t, dir, "commit", "-q", "-m", "second")

	return dir
}

func TestNewProvider_ResolvesRepoRoot(t *testing.T) {
	dir := initTestRepo(t)
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	p, err := NewProvider(sub, 5*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, p.repoRoot)
}

func TestNewProvider_NotGitRepo(t *testing.T) {
	dir := t.TempDir()
	_, err := NewProvider(dir, 5*time.Second)
	require.Error(t, err)
}

func TestComputeSignals(t *testing.T) {
	dir := initTestRepo(t)
	p, err := NewProvider(dir, 5*time.Second)
	require.NoError(t, err)

	signals := p.ComputeSignals(context.Background(), []string{"main.go", "go.sum", "missing.go"})
	require.Len(t, signals, 3)

	mainSig := signals["main.go"]
	require.Equal(t, 2, mainSig.CommitCount)
	require.NotEmpty(t, mainSig.LastModified)
	require.InDelta(t, 1.0, mainSig.ChurnScore, 0.0001)

	// go.sum matched as churn noise; it is still tracked (committed once)
	// but must not dominate the normalised score above main.go.
	sumSig := signals["go.sum"]
	require.LessOrEqual(t, sumSig.ChurnScore, mainSig.ChurnScore)

	missingSig := signals["missing.go"]
	require.Zero(t, missingSig.CommitCount)
	require.Zero(t, missingSig.ChurnScore)
}

func TestDiff_DetectsModifiedFile(t *testing.T) {
	dir := initTestRepo(t)
	p, err := NewProvider(dir, 5*time.Second)
	require.NoError(t, err)

	entries, err := p.Diff(context.Background(), "HEAD~1")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	var main *types.DiffEntry
	for i := range entries {
		if entries[i].File == "main.go" {
			main = &entries[i]
		}
	}
	require.NotNil(t, main)
	require.Equal(t, types.DiffModified, main.Status)
	require.Equal(t, 3, main.Additions)
}

func TestDiff_DetectsAddedFile(t *testing.T) {
	dir := initTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.go"), []byte("package main\n"), 0o644))
	runGitCmd(t, dir, "add", ".")
	runGitCmd(t, dir, "commit", "-q", "-m", "third")

	p, err := NewProvider(dir, 5*time.Second)
	require.NoError(t, err)

	entries, err := p.Diff(context.Background(), "HEAD~1")
	require.NoError(t, err)

	var extra *types.DiffEntry
	for i := range entries {
		if entries[i].File == "extra.go" {
			extra = &entries[i]
		}
	}
	require.NotNil(t, extra)
	require.Equal(t, types.DiffAdded, extra.Status)
}

func TestChangedLines_ParsesHunkHeader(t *testing.T) {
	dir := initTestRepo(t)
	p, err := NewProvider(dir, 5*time.Second)
	require.NoError(t, err)

	lines, err := p.ChangedLines(context.Background(), "main.go", "HEAD~1")
	require.NoError(t, err)
	require.Contains(t, lines, 4)
}

func TestIsChurnNoise(t *testing.T) {
	require.True(t, isChurnNoise("go.sum"))
	require.True(t, isChurnNoise("vendor/pkg/thing.go"))
	require.True(t, isChurnNoise("docs/readme.md"))
	require.False(t, isChurnNoise("internal/vcs/vcs.go"))
}
