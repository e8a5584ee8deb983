package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"

	"github.com/harrisonrobin/taskcal/pkg/tools"
)

type MCPCmd struct {
	app *App

	overrides overrides
}

func NewMCPCmd(app *App) *MCPCmd {
	return &MCPCmd{app: app}
}

func (cmd *MCPCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "mcp",
		Usage: "Serve the sync tools over MCP on stdin/stdout",
		Description: `Exposes check_status, run_sync, start_automation, stop_automation and
get_logs to an MCP client. Logs go to stderr or --log-file, never stdout.`,
		Flags:  engineFlags(&cmd.overrides),
		Action: cmd.run,
	})
	return app
}

func (cmd *MCPCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := cmd.app.newEngine(ctx, cmd.overrides, false)
	defer engine.Close(cmd.app.log)

	server := tools.NewMCPServer(engine.Service, build())
	err := server.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
