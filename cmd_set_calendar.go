package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/harrisonrobin/taskcal/pkg/config"
)

type SetCalendarCmd struct {
	app *App

	taskList string
	keyword  string
}

func NewSetCalendarCmd(app *App) *SetCalendarCmd {
	return &SetCalendarCmd{app: app}
}

func (cmd *SetCalendarCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "set-calendar",
		Usage:     "Persist the default calendar, task list and keyword",
		UsageText: "taskcal set-calendar [--task-list NAME] [--keyword WORD] [CALENDAR]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "task-list",
				Usage:       "default Google Tasks list name or id",
				Destination: &cmd.taskList,
			},
			&cli.StringFlag{
				Name:        "keyword",
				Usage:       "default keyword",
				Destination: &cmd.keyword,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *SetCalendarCmd) run(ctx context.Context, c *cli.Command) error {
	update := config.File{Calendar: c.Args().First(), TaskList: cmd.taskList, Keyword: cmd.keyword}
	if update == (config.File{}) {
		return fmt.Errorf("nothing to set, pass a calendar name or --task-list/--keyword")
	}

	path := config.FilePath(cmd.app.cfg.Dir)
	file, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	file.Merge(update)
	if err := config.SaveFile(path, file); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	if update.Calendar != "" {
		fmt.Printf("Default calendar set to: %s\n", color.CyanString(update.Calendar))
	}
	if update.TaskList != "" {
		fmt.Printf("Default task list set to: %s\n", color.CyanString(update.TaskList))
	}
	if update.Keyword != "" {
		fmt.Printf("Default keyword set to: %s\n", color.CyanString(update.Keyword))
	}
	return nil
}
