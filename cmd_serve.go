package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/harrisonrobin/taskcal/pkg/logutils"
	"github.com/harrisonrobin/taskcal/pkg/server"
)

type ServeCmd struct {
	app *App

	overrides overrides
	autoStart bool
}

func NewServeCmd(app *App) *ServeCmd {
	return &ServeCmd{app: app}
}

func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP control API and optional scheduled syncs",
		Description: `Listens on TASKCAL_HTTP_HOST:TASKCAL_HTTP_PORT. Set TASKCAL_API_KEY to
require an X-API-Key or Bearer header on /api routes. Prometheus metrics
are exposed on /metrics.`,
		Flags: append(engineFlags(&cmd.overrides), &cli.BoolFlag{
			Name:        "auto-start",
			Usage:       "start scheduled syncs at the configured interval",
			Sources:     cli.EnvVars("TASKCAL_AUTO_START"),
			Destination: &cmd.autoStart,
		}),
		Action: cmd.run,
	})
	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := cmd.app.cfg
	log := cmd.app.log
	engine := cmd.app.newEngine(ctx, cmd.overrides, false)
	defer engine.Close(log)

	srv := server.New(engine.Service, engine.Metrics, logutils.Component(log, "http"), server.Options{
		Addr:      cfg.Addr(),
		APIKey:    cfg.APIKey,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	if cmd.autoStart || cfg.AutoStart {
		if engine.SetupErr != nil {
			log.Warn().Err(engine.SetupErr).Msg("not starting automation, google clients unavailable")
		} else if _, err := engine.Service.StartAutomation("", "", true); err != nil {
			log.Error().Err(err).Msg("could not start automation")
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	return nil
}
