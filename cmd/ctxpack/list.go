package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/workspace"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List previously generated context packs, most recent first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of packs to list"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(workspace.PacksDir(cfg.Project.Root))
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("ctxpack: no packs yet, run `ctxpack pack --task ...` first")
					return nil
				}
				return fmt.Errorf("read packs dir: %w", err)
			}

			names := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.IsDir() {
					names = append(names, e.Name())
				}
			}
			sort.Sort(sort.Reverse(sort.StringSlice(names)))

			limit := c.Int("limit")
			if limit > 0 && len(names) > limit {
				names = names[:limit]
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}
