package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/harrisonrobin/taskcal/pkg/reconcile"
	"github.com/harrisonrobin/taskcal/pkg/syncer"
)

type SyncCmd struct {
	app *App

	overrides  overrides
	jsonOutput bool
}

func NewSyncCmd(app *App) *SyncCmd {
	return &SyncCmd{app: app}
}

func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Run one reconciliation pass",
		UsageText: "taskcal sync [--keyword WORD] [--calendar NAME] [--task-list NAME] [--json]",
		Flags: append(engineFlags(&cmd.overrides), &cli.BoolFlag{
			Name:        "json",
			Usage:       "print the run result as JSON",
			Destination: &cmd.jsonOutput,
		}),
		Action: cmd.run,
	})
	return app
}

// engineFlags are shared by every command that builds the sync engine.
func engineFlags(o *overrides) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "keyword",
			Aliases:     []string{"k"},
			Usage:       "keyword to match in task titles",
			Destination: &o.keyword,
		},
		&cli.StringFlag{
			Name:        "calendar",
			Usage:       "Google Calendar name or id (overrides config)",
			Destination: &o.calendar,
		},
		&cli.StringFlag{
			Name:        "task-list",
			Usage:       "Google Tasks list name or id (overrides config)",
			Destination: &o.taskList,
		},
	}
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	engine := cmd.app.newEngine(ctx, cmd.overrides, true)
	defer engine.Close(cmd.app.log)

	run, err := engine.Service.RunSync(ctx, "")
	if err != nil {
		return err
	}
	if cmd.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	printRun(os.Stdout, run)
	return nil
}

func actionColor(action reconcile.Action) func(format string, a ...any) string {
	switch action {
	case reconcile.ActionCreated, reconcile.ActionRecreated:
		return color.GreenString
	case reconcile.ActionUpdated:
		return color.CyanString
	case reconcile.ActionError:
		return color.RedString
	default:
		return color.New(color.Faint).Sprintf
	}
}

func printRun(w io.Writer, run *syncer.RunResult) {
	fmt.Fprintf(w, "Keyword %s: %d matching task(s)\n", color.New(color.Bold).Sprint(run.Keyword), run.Counts.Found)
	for _, res := range run.Results {
		label := actionColor(res.Action)("%-9s", res.Action)
		line := fmt.Sprintf("  %s %s", label, res.TaskTitle)
		switch {
		case res.Action == reconcile.ActionError:
			line += " " + color.RedString("%s", res.Error)
		case res.EventURL != "":
			line += " " + res.EventURL
		}
		if res.Note != "" {
			line += " " + color.YellowString("(%s)", res.Note)
		}
		fmt.Fprintln(w, line)
	}
	c := run.Counts
	fmt.Fprintf(w, "%d created, %d recreated, %d updated, %d skipped, %d errors",
		c.Created, c.Recreated, c.Updated, c.Skipped, c.Errors)
	if c.Placeholders > 0 {
		fmt.Fprintf(w, ", %d placeholders", c.Placeholders)
	}
	fmt.Fprintln(w)
}
