package config

import (
	"os"
	"runtime"
)

// Default resource caps, mirrored from spec §5.
const (
	DefaultMaxFileSize     = 1024 * 1024 // 1MiB, per the scanner's file-size cap
	DefaultMaxTotalSizeMB  = 2048
	DefaultMaxFileCount    = 200000
	DefaultMaxFiles        = 25
	DefaultSmallFileLines  = 200
	DefaultWindowSize      = 20
	DefaultMaxLinesPerFile = 300
	DefaultHeaderLines     = 10
	DefaultMaxBFSDepth     = 2
	DefaultMaxBFSNodes     = 100
	DefaultKeywordQueries  = 30
	DefaultHitsPerQuery    = 20
)

// Config is the root project configuration, loaded from <root>/.ctxpack.kdl
// with in-code defaults when absent.
type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Scoring     Scoring
	Excerpt     Excerpt
	Include     []string
	Exclude     []string
}

// Project identifies the workspace being indexed.
type Project struct {
	Root string
	Name string
}

// Index controls the File Scanner and Indexer (§4.3, §4.7).
type Index struct {
	MaxFileSize      int64
	MaxTotalSizeMB   int64
	MaxFileCount     int
	FollowSymlinks   bool
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int
}

// Performance controls concurrency caps used by the Scanner and Discovery
// fan-out (§5).
type Performance struct {
	MaxGoroutines      int
	DebounceMs         int
	IndexingTimeoutSec int
	GitTimeoutSec      int
}

// Scoring holds the Scorer's weight table and selection quotas (§4.14),
// overridable per project.
type Scoring struct {
	MaxFiles int

	WeightFileHintExact float64
	WeightFileHintHit   float64
	WeightStacktraceHit float64
	WeightDiffHit       float64
	WeightRawPathMatch  float64
	WeightSymbolMatch   float64
	WeightKeywordMatch  float64
	WeightTestFile      float64
	WeightGitHotspot    float64
	WeightRelatedFile   float64
	WeightExampleUsage  float64
	WeightGraphRelated  float64

	OtherQuota  float64 // fraction of remaining slots for non-test/non-config files
	TestQuota   float64 // fraction for related test files
	ConfigQuota float64 // fraction for domain-referencing config files

	EnableTests  bool
	EnableConfig bool
}

// Excerpt controls the Excerpt Extractor's windowing (§4.15).
type Excerpt struct {
	SmallFileLines  int
	WindowSize      int
	MaxLinesPerFile int
	HeaderLines     int
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	// Global base config from ~/.ctxpack.kdl, if present.
	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if kdlCfg, err := LoadKDL(searchDir); err == nil && kdlCfg != nil {
		projectConfig = kdlCfg
	} else if err != nil {
		return nil, err
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := Default(cwd)
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

// Default returns the in-code default configuration for a project root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root},
		Index: Index{
			MaxFileSize:      DefaultMaxFileSize,
			MaxTotalSizeMB:   DefaultMaxTotalSizeMB,
			MaxFileCount:     DefaultMaxFileCount,
			FollowSymlinks:   false,
			RespectGitignore: true,
			WatchMode:        false,
			WatchDebounceMs:  300,
		},
		Performance: Performance{
			MaxGoroutines:      runtime.NumCPU(),
			DebounceMs:         100,
			IndexingTimeoutSec: 120,
			GitTimeoutSec:      15,
		},
		Scoring: Scoring{
			MaxFiles:            DefaultMaxFiles,
			WeightFileHintExact:  2.00,
			WeightFileHintHit:    0.40,
			WeightStacktraceHit:  0.30,
			WeightDiffHit:        0.22,
			WeightRawPathMatch:   0.25,
			WeightSymbolMatch:    0.20,
			WeightKeywordMatch:   0.08,
			WeightTestFile:       0.05,
			WeightGitHotspot:     0.04,
			WeightRelatedFile:    0.12,
			WeightExampleUsage:   0.04,
			WeightGraphRelated:   0.05,
			OtherQuota:           0.7,
			TestQuota:            0.2,
			ConfigQuota:          0.1,
			EnableTests:          true,
			EnableConfig:         true,
		},
		Excerpt: Excerpt{
			SmallFileLines:  DefaultSmallFileLines,
			WindowSize:      DefaultWindowSize,
			MaxLinesPerFile: DefaultMaxLinesPerFile,
			HeaderLines:     DefaultHeaderLines,
		},
		Include: []string{},
		Exclude: defaultExcludes(),
	}
}

func defaultExcludes() []string {
	return []string{
		"**/.git/**",
		"**/.context/**",
		"**/.*/**",

		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",
		"**/jspm_packages/**",

		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**",
		"**/bin/**",
		"**/obj/**",
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",
		"**/*.chunk.js",
		"**/*.min.map",

		"**/__pycache__/**",
		"**/*.pyc",

		"**/*.avif",
		"**/*.webp",
		"**/*.wasm",
		"**/*.woff",
		"**/*.woff2",
		"**/*.ttf",
		"**/*.eot",
		"**/*.otf",

		"**/*.mp4", "**/*.avi", "**/*.mov", "**/*.mkv", "**/*.webm",
		"**/*.mp3", "**/*.wav", "**/*.flac", "**/*.ogg",

		"**/*.doc", "**/*.docx", "**/*.xls", "**/*.xlsx",
		"**/*.ppt", "**/*.pptx", "**/*.pdf",

		"**/*.swp", "**/*.swo", "**/*~",

		"**/Thumbs.db",
		"**/desktop.ini",

		"**/logs/**",
		"**/*.log",
	}
}

// mergeConfigs merges a base config with a project config; project settings
// win, but base exclusions are preserved alongside project ones.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		excludeMap := make(map[string]bool)
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories from
// language manifests and appends them to the exclusion list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detector := NewBuildArtifactDetector(c.Project.Root)
	detected := detector.DetectOutputDirectories()
	if len(detected) > 0 {
		c.Exclude = append(c.Exclude, detected...)
		c.Exclude = DeduplicatePatterns(c.Exclude)
	}
}
