package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/pack"
	"github.com/standardbeagle/ctxpack/internal/resolver"
	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/semantic"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/workspace"
)

func packCommand() *cli.Command {
	return &cli.Command{
		Name:  "pack",
		Usage: "Resolve a task description into a ranked, excerpted ctx.json bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "task", Usage: "Natural-language description of the task"},
			&cli.StringFlag{Name: "error", Usage: "Path to a file containing a stacktrace or error log to parse"},
			&cli.StringFlag{Name: "since", Usage: "Only consider stacktrace lines at or after this relative window, e.g. '2h', '1d'"},
			&cli.StringFlag{Name: "diff", Usage: "VCS ref to diff against for changed-file/changed-line signals"},
			&cli.StringSliceFlag{Name: "file", Usage: "Workspace-relative file path known to be relevant (repeatable)"},
			&cli.StringSliceFlag{Name: "symbol", Usage: "Symbol name known to be relevant (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			root := cfg.Project.Root

			task := c.String("task")
			if task == "" {
				return fmt.Errorf("--task is required")
			}

			var stacktraceText string
			if errPath := c.String("error"); errPath != "" {
				data, err := os.ReadFile(errPath)
				if err != nil {
					return fmt.Errorf("read --error file: %w", err)
				}
				stacktraceText = string(data)
			}

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

			cached, _ := workspace.LoadProjectCache(root)
			reg := rules.NewRegistry(root, rules.BuiltinRules(), cached.ActiveDiscoveries)
			applyDomainOverrides(reg, root)

			res := resolver.New(cfg, st, reg, matcher, semantic.NewEngine(nil))
			result, err := res.Resolve(context.Background(), resolver.Input{
				Description:     task,
				StacktraceText:  stacktraceText,
				StacktraceSince: c.String("since"),
				DiffRef:         c.String("diff"),
				FileHints:       c.StringSlice("file"),
				SymbolHints:     c.StringSlice("symbol"),
			})
			if err != nil {
				return fmt.Errorf("resolve task: %w", err)
			}

			now := time.Now()
			slug := pack.Slug(task, now)
			manifest := pack.NewManifest(slug, now, result)

			dir := workspace.PackDir(root, slug)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create pack dir: %w", err)
			}
			data, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal ctx.json: %w", err)
			}
			if err := os.WriteFile(filepath.Join(dir, "ctx.json"), data, 0o644); err != nil {
				return fmt.Errorf("write ctx.json: %w", err)
			}

			fmt.Printf("ctxpack: wrote %s (%d files, confidence %s)\n",
				filepath.Join(dir, "ctx.json"), len(manifest.Files), manifest.Task.Confidence.Label())
			return nil
		},
	}
}

// applyDomainOverrides layers the workspace's saved custom/disabled domains
// (spec §6, `.context/domains.json`) onto a freshly probed registry.
func applyDomainOverrides(reg *rules.Registry, root string) {
	overrides, ok := workspace.LoadDomainOverrides(root)
	if !ok {
		return
	}
	reg.AddDomains(overrides.CustomDomains)
	reg.SetDisabledDomains(overrides.DisabledDomains)
}
