package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/ignore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScan_BasicEligibility(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "README", "hello\n")
	writeFile(t, root, "image.png", "\x89PNG")
	writeFile(t, root, "empty.go", "")
	writeFile(t, root, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	cfg := config.Default(root)
	m := ignore.New()
	for _, p := range cfg.Exclude {
		m.AddRulePatterns([]string{p})
	}
	sc := New(cfg, m)

	records, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)

	paths := make([]string, 0, len(records))
	for _, r := range records {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "main.go")
	assert.Contains(t, paths, "README")
	assert.NotContains(t, paths, "image.png")
	assert.NotContains(t, paths, "empty.go")
	assert.NotContains(t, paths, "node_modules/lib/index.js")
	assert.NotContains(t, paths, ".git/HEAD")
}

func TestScan_ComputesHashAndLanguage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/foo.go", "package pkg\n")

	cfg := config.Default(root)
	sc := New(cfg, ignore.New())

	records, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pkg/foo.go", records[0].Path)
	assert.Equal(t, "go", records[0].Language)
	assert.NotEmpty(t, records[0].Hash)
	assert.Equal(t, int64(len("package pkg\n")), records[0].Size)
}

func TestScan_RejectsOversizedFile(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 100)
	writeFile(t, root, "big.go", string(big))

	cfg := config.Default(root)
	cfg.Index.MaxFileSize = 10
	sc := New(cfg, ignore.New())

	records, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScan_UnknownExtensionRejectedUnlessAllowlisted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data.unknownext", "whatever\n")
	writeFile(t, root, "Dockerfile", "FROM scratch\n")

	cfg := config.Default(root)
	sc := New(cfg, ignore.New())

	records, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	paths := make([]string, 0, len(records))
	for _, r := range records {
		paths = append(paths, r.Path)
	}
	assert.NotContains(t, paths, "data.unknownext")
	assert.Contains(t, paths, "Dockerfile")
}
