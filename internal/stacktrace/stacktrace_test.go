package stacktrace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_GoPanic(t *testing.T) {
	log := `panic: runtime error: invalid memory address
goroutine 1 [running]:
main.run()
	internal/store/store.go:42 +0x1a2
`
	entries, err := Parse(log, "", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "internal/store/store.go", entries[0].File)
	assert.Equal(t, 42, entries[0].Line)
	assert.Contains(t, entries[0].Message, "invalid memory address")
}

func TestParse_NodeStack(t *testing.T) {
	log := `TypeError: Cannot read properties of undefined
    at processRequest (src/handlers/user.js:12:34)`
	entries, err := Parse(log, "", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "src/handlers/user.js", entries[0].File)
	assert.Equal(t, 12, entries[0].Line)
	assert.Equal(t, 34, entries[0].Column)
	assert.Equal(t, "processRequest", entries[0].Function)
}

func TestParse_PythonTraceback(t *testing.T) {
	log := `Traceback (most recent call last):
  File "app/views.py", line 88, in handle
    raise ValueError("bad input")
ValueError: bad input`
	entries, err := Parse(log, "", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "app/views.py", entries[0].File)
	assert.Equal(t, 88, entries[0].Line)
	assert.Equal(t, "handle", entries[0].Function)
}

func TestParse_DropsVendorPaths(t *testing.T) {
	log := `vendor/github.com/pkg/errors/errors.go:42
internal/store/store.go:10`
	entries, err := Parse(log, "", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "internal/store/store.go", entries[0].File)
}

func TestParse_DeduplicatesByFileAndLine(t *testing.T) {
	log := `internal/store/store.go:10
internal/store/store.go:10
internal/store/store.go:11`
	entries, err := Parse(log, "", time.Now())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestParse_NormalizesWindowsPath(t *testing.T) {
	log := `C:\Users\dev\project\internal\store\store.go:10`
	entries, err := Parse(log, "", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].File, "\\")
}

func TestParse_SinceFilterDropsOldLines(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	log := "2026-07-31T08:00:00 internal/old/file.go:1\n" +
		"2026-07-31T11:55:00 internal/new/file.go:2\n"
	entries, err := Parse(log, "1h", now)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "internal/new/file.go", entries[0].File)
}

func TestParseSince_InvalidUnit(t *testing.T) {
	_, err := parseSince("10x")
	assert.Error(t, err)
}

func TestNormalizePath_TrimsLeadingUppercaseDirs(t *testing.T) {
	got := normalizePath("/Users/Dev/Project/internal/store/store.go")
	assert.Equal(t, "internal/store/store.go", got)
}
