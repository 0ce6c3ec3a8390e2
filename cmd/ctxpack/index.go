package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/indexer"
	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/workspace"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Run the File Scanner, Symbol Extractor, Import Graph builder and VCS Signals into the Store",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running, re-indexing changed files as fsnotify events arrive",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			root := cfg.Project.Root

			if err := workspace.EnsureDir(root); err != nil {
				return fmt.Errorf("create workspace dir: %w", err)
			}
			st, err := store.Open(workspace.StorePath(root))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			matcher, err := buildMatcher(root)
			if err != nil {
				return err
			}

			idx := indexer.New(cfg, st, matcher)

			var onProgress indexer.ProgressFunc
			if c.Bool("verbose") {
				onProgress = func(done, total int) {
					fmt.Printf("\rctxpack: indexing %d/%d", done, total)
				}
			}

			stats, err := idx.Run(context.Background(), onProgress)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			if c.Bool("verbose") {
				fmt.Println()
			}
			fmt.Printf("ctxpack: scanned %d, updated %d, deleted %d, symbols %d, imports %d (%s)\n",
				stats.FilesScanned, stats.FilesUpdated, stats.FilesDeleted, stats.SymbolsFound, stats.ImportsFound, stats.Duration)

			if c.Bool("watch") {
				cfg.Index.WatchMode = true
				fmt.Println("ctxpack: watching for changes, press Ctrl+C to stop")
				return idx.Watch(context.Background(), func(count int) {
					fmt.Printf("ctxpack: re-indexed %d changed file(s)\n", count)
				})
			}
			return nil
		},
	}
}

// buildMatcher loads .ctxignore plus the cached Domain/Rule Registry's
// ignore-pattern blocks, the way internal/mcpserver.New does for MCP mode.
func buildMatcher(root string) (*ignore.Matcher, error) {
	matcher, err := ignore.NewFromRoot(root)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}
	cached, _ := workspace.LoadProjectCache(root)
	reg := rules.NewRegistry(root, rules.BuiltinRules(), cached.ActiveDiscoveries)
	matcher.AddRulePatterns(splitNonEmptyLines(reg.GetMergedCtxIgnore()))
	return matcher, nil
}

func splitNonEmptyLines(block string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(block); i++ {
		if i == len(block) || block[i] == '\n' {
			line := block[start:i]
			if len(line) > 0 {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	return lines
}
