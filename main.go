package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/harrisonrobin/taskcal/pkg/config"
	"github.com/harrisonrobin/taskcal/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}
	short := c
	if len(c) > 7 {
		short = c[:7]
	}
	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	var (
		flags     = &Flags{}
		a         = &App{flags: flags}
		logCloser = func() {}
	)

	cmd := &cli.Command{
		Name:      "taskcal",
		Usage:     "Keep calendar events in sync with keyword-matching Google Tasks",
		UsageText: "taskcal [global options] command [command options]",
		Description: `taskcal finds incomplete Google Tasks whose title contains a keyword and
makes sure each one has exactly one Google Calendar event on its due date.

The event id is remembered in the task's notes as [CAL_EVENT:<id>], so runs
are idempotent and no other state is kept.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error)",
				Sources:     cli.EnvVars("TASKCAL_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("TASKCAL_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config-dir",
				Usage:       "directory holding credentials.json, token.json and config.json",
				Sources:     cli.EnvVars("TASKCAL_CONFIG_DIR"),
				Destination: &flags.ConfigDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logCloser = closer

			dir := flags.ConfigDir
			if dir == "" {
				if dir, err = config.Dir(); err != nil {
					return ctx, fmt.Errorf("could not find configuration directory: %w", err)
				}
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}

			a.log = logger
			a.cfg = cfg
			return ctx, nil
		},
	}

	cmd = NewAuthCmd(a).Register(cmd)
	cmd = NewSetCalendarCmd(a).Register(cmd)
	cmd = NewSyncCmd(a).Register(cmd)
	cmd = NewServeCmd(a).Register(cmd)
	cmd = NewMCPCmd(a).Register(cmd)

	err := cmd.Run(context.Background(), os.Args)
	logCloser()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}
