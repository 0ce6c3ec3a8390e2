package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/workspace"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Probe the Domain/Rule Registry and write the workspace's .ctxignore",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing .ctxignore",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			root := cfg.Project.Root

			reg := rules.NewRegistry(root, rules.BuiltinRules(), nil)
			if err := workspace.SaveProjectCache(root, workspace.ProjectCache{
				DetectedAt:        time.Now().UTC().Format(time.RFC3339),
				ActiveDiscoveries: reg.MatchedNames(),
			}); err != nil {
				return fmt.Errorf("save project cache: %w", err)
			}

			if err := workspace.WriteMergedIgnoreFile(root, reg.GetMergedCtxIgnore(), c.Bool("force")); err != nil {
				return fmt.Errorf("write .ctxignore: %w", err)
			}

			fmt.Printf("ctxpack: matched rules: %v\n", reg.MatchedNames())
			fmt.Printf("ctxpack: workspace initialised at %s\n", workspace.Dir(root))
			return nil
		},
	}
}
