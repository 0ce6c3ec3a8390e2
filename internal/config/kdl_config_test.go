package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultMaxFiles, cfg.Scoring.MaxFiles)
	assert.Equal(t, 2.00, cfg.Scoring.WeightFileHintExact)
	assert.True(t, cfg.Scoring.EnableTests)
	assert.True(t, cfg.Scoring.EnableConfig)
	assert.NotEmpty(t, cfg.Exclude)
}

func TestParseKDL_ScoringWeights(t *testing.T) {
	kdlContent := `
scoring {
    max_files 40
    enable_tests false
    weights {
        symbol_match 0.5
        keyword_match 0.1
    }
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 40, cfg.Scoring.MaxFiles)
	assert.False(t, cfg.Scoring.EnableTests)
	assert.Equal(t, 0.5, cfg.Scoring.WeightSymbolMatch)
	assert.Equal(t, 0.1, cfg.Scoring.WeightKeywordMatch)
	// Untouched weights keep their defaults.
	assert.Equal(t, 2.00, cfg.Scoring.WeightFileHintExact)
}

func TestParseKDL_Excerpt(t *testing.T) {
	kdlContent := `
excerpt {
    small_file_lines 100
    window_size 10
    max_lines_per_file 150
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 100, cfg.Excerpt.SmallFileLines)
	assert.Equal(t, 10, cfg.Excerpt.WindowSize)
	assert.Equal(t, 150, cfg.Excerpt.MaxLinesPerFile)
}

func TestParseKDL_IndexSizeStrings(t *testing.T) {
	kdlContent := `
index {
    max_file_size "10MB"
    max_file_count 5000
    follow_symlinks true
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, int64(10*1024*1024), cfg.Index.MaxFileSize)
	assert.Equal(t, 5000, cfg.Index.MaxFileCount)
	assert.True(t, cfg.Index.FollowSymlinks)
}

func TestParseKDL_IncludeExclude(t *testing.T) {
	kdlContent := `
include {
    "*.go"
    "*.ts"
}
exclude {
    "**/vendor/**"
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"*.go", "*.ts"}, cfg.Include)
	assert.Equal(t, []string{"**/vendor/**"}, cfg.Exclude)
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"1B":   1,
		"10KB": 10 * 1024,
		"5MB":  5 * 1024 * 1024,
		"1GB":  1024 * 1024 * 1024,
		"42":   42,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
