package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/workspace"
)

// openCommand prints raw bundle contents. Rendering the full human-facing
// bundle (TASK.md, FILES.md, GRAPH.md, ...) beyond ctx.json's core contract
// is the external renderer's job (spec §1 Out of scope); this command only
// surfaces what ctxpack itself persisted.
func openCommand() *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Print a generated pack's ctx.json, or a workspace file's contents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pack", Usage: "Pack slug to print ctx.json for"},
			&cli.StringFlag{Name: "file", Usage: "Workspace-relative file path to print"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			root := cfg.Project.Root

			slug := c.String("pack")
			file := c.String("file")
			switch {
			case slug != "" && file != "":
				return fmt.Errorf("--pack and --file are mutually exclusive")
			case slug != "":
				return printPack(root, slug)
			case file != "":
				return printFile(root, file)
			default:
				return fmt.Errorf("one of --pack or --file is required")
			}
		},
	}
}

func printPack(root, slug string) error {
	path := filepath.Join(workspace.PackDir(root, slug), "ctx.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err == nil {
		if indented, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			fmt.Println(string(indented))
			return nil
		}
	}
	fmt.Println(string(data))
	return nil
}

func printFile(root, relPath string) error {
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}
	fmt.Println(string(data))
	return nil
}
