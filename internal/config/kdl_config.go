package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from <projectRoot>/.ctxpack.kdl.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".ctxpack.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil // no KDL config found, caller falls back to defaults
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .ctxpack.kdl: %v", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.Project.Root != "" {
		var absRoot string
		if filepath.IsAbs(cfg.Project.Root) {
			absRoot = cfg.Project.Root
		} else {
			absRoot = filepath.Join(projectRoot, cfg.Project.Root)
		}
		cfg.Project.Root = filepath.Clean(absRoot)
	} else if cfg != nil {
		absRoot, err := filepath.Abs(projectRoot)
		if err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	}

	return cfg, nil
}

// parseKDL parses .ctxpack.kdl content into a Config, starting from the
// in-code defaults and overriding whatever blocks are present.
func parseKDL(content string) (*Config, error) {
	defaultRoot, _ := os.Getwd()
	if defaultRoot == "" {
		defaultRoot = "."
	}

	cfg := Default(defaultRoot)
	cfg.Include = []string{}
	cfg.Exclude = []string{}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Index.MaxFileSize = sz
						}
					}
				case "max_total_size_mb":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxTotalSizeMB = int64(v)
					}
				case "max_file_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileCount = v
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_goroutines":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxGoroutines = v
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.DebounceMs = v
					}
				case "indexing_timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.IndexingTimeoutSec = v
					}
				case "git_timeout_sec":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.GitTimeoutSec = v
					}
				}
			}
		case "scoring":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_files":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scoring.MaxFiles = v
					}
				case "enable_tests":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Scoring.EnableTests = b
					}
				case "enable_config":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Scoring.EnableConfig = b
					}
				case "other_quota":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Scoring.OtherQuota = v
					}
				case "test_quota":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Scoring.TestQuota = v
					}
				case "config_quota":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Scoring.ConfigQuota = v
					}
				case "weights":
					for _, wn := range cn.Children {
						assignWeight(wn, "file_hint_exact", &cfg.Scoring.WeightFileHintExact)
						assignWeight(wn, "file_hint_hit", &cfg.Scoring.WeightFileHintHit)
						assignWeight(wn, "stacktrace_hit", &cfg.Scoring.WeightStacktraceHit)
						assignWeight(wn, "diff_hit", &cfg.Scoring.WeightDiffHit)
						assignWeight(wn, "raw_path_match", &cfg.Scoring.WeightRawPathMatch)
						assignWeight(wn, "symbol_match", &cfg.Scoring.WeightSymbolMatch)
						assignWeight(wn, "keyword_match", &cfg.Scoring.WeightKeywordMatch)
						assignWeight(wn, "test_file", &cfg.Scoring.WeightTestFile)
						assignWeight(wn, "git_hotspot", &cfg.Scoring.WeightGitHotspot)
						assignWeight(wn, "related_file", &cfg.Scoring.WeightRelatedFile)
						assignWeight(wn, "example_usage", &cfg.Scoring.WeightExampleUsage)
						assignWeight(wn, "graph_related", &cfg.Scoring.WeightGraphRelated)
					}
				}
			}
		case "excerpt":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "small_file_lines":
					if v, ok := firstIntArg(cn); ok {
						cfg.Excerpt.SmallFileLines = v
					}
				case "window_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Excerpt.WindowSize = v
					}
				case "max_lines_per_file":
					if v, ok := firstIntArg(cn); ok {
						cfg.Excerpt.MaxLinesPerFile = v
					}
				case "header_lines":
					if v, ok := firstIntArg(cn); ok {
						cfg.Excerpt.HeaderLines = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	if len(cfg.Exclude) == 0 {
		cfg.Exclude = defaultExcludes()
	}

	cfg.EnrichExclusionsWithBuildArtifacts()

	return cfg, nil
}

func assignWeight(n *document.Node, target string, dst *float64) {
	if nodeName(n) != target {
		return
	}
	if v, ok := firstFloatArg(n); ok {
		*dst = v
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid float value for '%s' in KDL config, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
