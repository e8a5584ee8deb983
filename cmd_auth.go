package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/harrisonrobin/taskcal/pkg/auth"
	"github.com/harrisonrobin/taskcal/pkg/logutils"
)

type AuthCmd struct {
	app *App
}

func NewAuthCmd(app *App) *AuthCmd {
	return &AuthCmd{app: app}
}

func (cmd *AuthCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "auth",
		Usage: "Authorize access to Google Calendar and Google Tasks",
		Description: `Runs the OAuth desktop flow in your browser and stores the resulting token
next to credentials.json in the config directory. Any existing token is
replaced.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *AuthCmd) run(ctx context.Context, c *cli.Command) error {
	dir := cmd.app.cfg.Dir
	if err := auth.Reauthorize(ctx, dir, logutils.Component(cmd.app.log, "auth")); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Printf("%s token saved to %s\n", color.GreenString("Authentication successful!"), filepath.Join(dir, auth.TokenFile))
	return nil
}
