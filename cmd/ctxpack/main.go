// Command ctxpack is the CLI surface of the context packer (spec §6, §7):
// init/index/pack/list/open/domains/mcp, wired straight onto the
// internal/resolver, internal/indexer, internal/pack and internal/mcpserver
// packages. Structured on the teacher's cmd/lci/main.go: a single
// urfave/cli/v2 App with a shared config-loading helper and one exit path.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/debug"
	"github.com/standardbeagle/ctxpack/internal/version"
)

// loadConfigWithOverrides loads the project config and applies the global
// --root/--include/--exclude flag overrides, the way the teacher's
// loadConfigWithOverrides does for .lci.kdl.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = cwd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %q: %w", root, err)
	}

	cfg, err := config.LoadWithRoot("", absRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Project.Root = absRoot

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "ctxpack",
		Usage:                  "Repository-local context packs for AI coding agents",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (defaults to the current directory)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include only files matching these glob patterns",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching these glob patterns, in addition to .ctxignore",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show debug information",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				debug.SetDebugOutput(os.Stderr)
				os.Setenv("DEBUG", "1")
			}
			return nil
		},
		Commands: []*cli.Command{
			initCommand(),
			indexCommand(),
			packCommand(),
			listCommand(),
			openCommand(),
			domainsCommand(),
			mcpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ctxpack: %v\n", err)
		os.Exit(1)
	}
}
