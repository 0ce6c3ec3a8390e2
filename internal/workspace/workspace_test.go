package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/types"
)

func TestProjectCache_RoundTrip(t *testing.T) {
	root := t.TempDir()
	_, ok := LoadProjectCache(root)
	assert.False(t, ok)

	require.NoError(t, SaveProjectCache(root, ProjectCache{
		DetectedAt:        "2026-03-05T09:30:00Z",
		ActiveDiscoveries: []string{"node", "generic"},
	}))

	pc, ok := LoadProjectCache(root)
	require.True(t, ok)
	assert.Equal(t, []string{"node", "generic"}, pc.ActiveDiscoveries)
}

func TestDomainOverrides_RoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, SaveDomainOverrides(root, DomainOverrides{
		CustomDomains:   []types.Domain{{Name: "billing", Keywords: []string{"invoice", "charge"}}},
		DisabledDomains: []string{"payments"},
	}))

	do, ok := LoadDomainOverrides(root)
	require.True(t, ok)
	require.Len(t, do.CustomDomains, 1)
	assert.Equal(t, "billing", do.CustomDomains[0].Name)
	assert.Equal(t, []string{"payments"}, do.DisabledDomains)
}

func TestWriteMergedIgnoreFile_HeaderAndNoOverwriteWithoutForce(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteMergedIgnoreFile(root, "node_modules/\n", false))

	data, err := os.ReadFile(filepath.Join(root, IgnoreFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Generated by")
	assert.Contains(t, string(data), "node_modules/")

	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("custom\n"), 0o644))
	require.NoError(t, WriteMergedIgnoreFile(root, "vendor/\n", false))
	data, err = os.ReadFile(filepath.Join(root, IgnoreFileName))
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(data))

	require.NoError(t, WriteMergedIgnoreFile(root, "vendor/\n", true))
	data, err = os.ReadFile(filepath.Join(root, IgnoreFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "vendor/")
}

func TestStorePaths(t *testing.T) {
	root := "/tmp/proj"
	assert.Equal(t, "/tmp/proj/.context", Dir(root))
	assert.Equal(t, "/tmp/proj/.context/index.db", StorePath(root))
	assert.Equal(t, "/tmp/proj/.context/packs", PacksDir(root))
	assert.Equal(t, "/tmp/proj/.context/packs/20260305-093000-x", PackDir(root, "20260305-093000-x"))
}
