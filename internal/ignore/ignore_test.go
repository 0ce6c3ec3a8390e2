package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_EssentialAlwaysIgnored(t *testing.T) {
	m := New()
	assert.True(t, m.IsIgnored(".git/config"))
	assert.True(t, m.IsIgnored(".context/index.db"))
	assert.True(t, m.IsIgnored("src/.DS_Store"))
	assert.False(t, m.IsIgnored("src/main.go"))
}

func TestMatcher_UserPatterns(t *testing.T) {
	m := New()
	m.AddUserPatterns([]string{"*.log", "build/"})

	assert.True(t, m.IsIgnored("debug.log"))
	assert.True(t, m.IsIgnored("nested/debug.log"))
	assert.True(t, m.IsIgnored("build/output.js"))
	assert.False(t, m.IsIgnored("src/main.go"))
}

func TestMatcher_Negation(t *testing.T) {
	m := New()
	m.AddUserPatterns([]string{"*.log", "!important.log"})

	assert.True(t, m.IsIgnored("debug.log"))
	assert.False(t, m.IsIgnored("important.log"))
}

func TestMatcher_RuleBlockLayersOverUser(t *testing.T) {
	m := New()
	m.AddUserPatterns([]string{"!config/**"})
	m.AddRulePatterns([]string{"config/secret.php"})

	assert.False(t, m.IsIgnored("config/app.php"))
	assert.True(t, m.IsIgnored("config/secret.php"))
}

func TestMatcher_Filter(t *testing.T) {
	m := New()
	m.AddUserPatterns([]string{"*.log"})

	paths := []string{"a.go", "b.log", "c.go"}
	assert.Equal(t, []string{"a.go", "c.go"}, m.Filter(paths))
}

func TestNewFromRoot(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".ctxignore"), []byte("*.tmp\n"), 0644)
	require.NoError(t, err)

	m, err := NewFromRoot(dir)
	require.NoError(t, err)
	assert.True(t, m.IsIgnored("scratch.tmp"))
	assert.False(t, m.IsIgnored("main.go"))
}

func TestNewFromRoot_NoFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFromRoot(dir)
	require.NoError(t, err)
	assert.False(t, m.IsIgnored("main.go"))
}
