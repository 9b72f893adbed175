// Command flowsync collects metering flow data from the export service.
//
// Usage:
//
//	flowsync --config configs/flowsync.yaml monthly
//	flowsync --config configs/flowsync.yaml hourly
//	flowsync --config configs/flowsync.yaml aggregate --rebuild
//	flowsync --config configs/flowsync.yaml serve
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/wadc/flowsync/internal/config"
	"github.com/wadc/flowsync/internal/errlog"
	"github.com/wadc/flowsync/internal/export"
	"github.com/wadc/flowsync/internal/metrics"
	"github.com/wadc/flowsync/internal/pipeline"
	"github.com/wadc/flowsync/internal/scheduler"
	"github.com/wadc/flowsync/internal/store"
	"github.com/wadc/flowsync/internal/store/postgres"
	"github.com/wadc/flowsync/internal/store/sqlite"
	"github.com/wadc/flowsync/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "flowsync",
		Usage:   "Collect metering flow data into the site store",
		Version: version.String(),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/flowsync.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"FLOWSYNC_CONFIG"},
			},
		},

		Commands: []*cli.Command{
			monthlyCommand(),
			hourlyCommand(),
			aggregateCommand(),
			serveCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var nowFlag = &cli.StringFlag{
	Name:  "now",
	Usage: "Run as if at this local time (2006-01-02 or 2006-01-02 15:04:05)",
}

func monthlyCommand() *cli.Command {
	return &cli.Command{
		Name:  "monthly",
		Usage: "Export last complete month, reconcile sites and recompute statistics",
		Flags: []cli.Flag{nowFlag},
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(ctx context.Context, rt *runtime) error {
				now, err := parseNow(c.String("now"))
				if err != nil {
					return err
				}
				res, err := rt.pipeline.Monthly(ctx, now)
				rt.logger.Info("monthly summary",
					"records", res.Records,
					"created", res.Reconcile.Created,
					"updated", res.Reconcile.Updated,
					"appended", res.Reconcile.Appended,
					"failed", len(res.Reconcile.Failures),
				)
				return err
			})
		},
	}
}

func hourlyCommand() *cli.Command {
	return &cli.Command{
		Name:  "hourly",
		Usage: "Export the previous reporting day's hourly readings per route",
		Flags: []cli.Flag{nowFlag},
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(ctx context.Context, rt *runtime) error {
				now, err := parseNow(c.String("now"))
				if err != nil {
					return err
				}
				res, err := rt.pipeline.Hourly(ctx, now)
				rt.logger.Info("hourly summary", "appended", res.Appended, "failed_routes", res.Failed)
				return err
			})
		},
	}
}

func aggregateCommand() *cli.Command {
	return &cli.Command{
		Name:  "aggregate",
		Usage: "Recompute site statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rebuild",
				Usage: "Rebuild month slots from period values recorded since the last reset",
			},
			nowFlag,
		},
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(ctx context.Context, rt *runtime) error {
				now, err := parseNow(c.String("now"))
				if err != nil {
					return err
				}
				n, err := rt.pipeline.Aggregate(ctx, now, c.Bool("rebuild"))
				rt.logger.Info("aggregate summary", "entities", n)
				return err
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the hourly and monthly pipelines on their schedule until interrupted",
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(ctx context.Context, rt *runtime) error {
				sched := rt.cfg.Schedule
				s := scheduler.New(nil, rt.logger,
					scheduler.Job{
						Name: pipeline.NameHourly,
						Next: scheduler.Daily(sched.HourlyHour, 0),
						Run: func(ctx context.Context, now time.Time) error {
							_, err := rt.pipeline.Hourly(ctx, now)
							rt.dumpMetrics()
							return err
						},
					},
					scheduler.Job{
						Name: pipeline.NameMonthly,
						Next: scheduler.Monthly(sched.MonthlyDay, sched.MonthlyHour),
						Run: func(ctx context.Context, now time.Time) error {
							_, err := rt.pipeline.Monthly(ctx, now)
							rt.dumpMetrics()
							return err
						},
					},
				)
				if err := s.Start(ctx); err != nil {
					return err
				}

				<-ctx.Done()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer shutdownCancel()
				return s.Stop(shutdownCtx)
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, version.String())
			return nil
		},
	}
}

// runtime holds the components shared by every pipeline command.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    store.Store
	sink     *errlog.Sink
	pipeline *pipeline.Pipeline
}

func withRuntime(c *cli.Context, run func(ctx context.Context, rt *runtime) error) error {
	cfg, err := config.LoadAndValidate(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.With(version.LogAttrs()...).Info("starting flowsync",
		"command", c.Command.Name,
		"config", c.String("config"),
	)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	return run(ctx, rt)
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	m := metrics.New()

	s, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	sink := errlog.New(cfg.ErrorLog)
	client := export.NewClient(
		cfg.Export.BaseURL,
		cfg.Export.Username,
		cfg.Export.Password,
		export.WithLogger(logger),
		export.WithTimeout(cfg.Export.Timeout),
		export.WithRetries(cfg.Export.MaxRetries, time.Second),
		export.WithContentType(cfg.Export.ContentType),
		export.WithPolling(cfg.Export.PollInterval, cfg.Export.MaxPolls),
		export.WithResubmit(cfg.Export.ResubmitDelay, cfg.Export.MaxSubmitAttempts),
		export.WithLimiter(export.NewLimiter(cfg.Export.SubmitInterval, nil)),
		export.WithErrorSink(sink),
		export.WithMetrics(m),
	)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		store:    s,
		sink:     sink,
		pipeline: pipeline.New(cfg.Pipeline, client, s, logger, m),
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		s, err := postgres.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		logger.Info("opening sqlite store", "path", cfg.SQLitePath)
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	}
}

func (rt *runtime) dumpMetrics() {
	if err := rt.metrics.WriteTextfile(rt.cfg.Metrics.TextfilePath); err != nil {
		rt.logger.Error("failed to write metrics textfile", "error", err)
	}
}

func (rt *runtime) close() {
	rt.dumpMetrics()
	if err := rt.sink.Close(); err != nil {
		rt.logger.Error("failed to close error log", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("failed to close store", "error", err)
	}
}

// parseNow returns the current time, or the time given on the command line.
func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	for _, layout := range []string{time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --now %q", s)
}
