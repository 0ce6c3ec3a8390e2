package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/mcpserver"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start the MCP server (stdio transport) exposing ctxpack_index/ctxpack_pack/ctxpack_list",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}

			srv, err := mcpserver.New(cfg)
			if err != nil {
				return fmt.Errorf("start MCP server: %w", err)
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}
}
