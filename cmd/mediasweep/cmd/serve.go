package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/mediasweep/internal/category"
	"github.com/backmassage/mediasweep/internal/check"
	"github.com/backmassage/mediasweep/internal/job"
	"github.com/backmassage/mediasweep/internal/logging"
	"github.com/backmassage/mediasweep/internal/queue"
	"github.com/backmassage/mediasweep/internal/scheduler"
	"github.com/backmassage/mediasweep/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept Radarr and Sonarr webhooks and run scheduled sweeps",
	Long: `Start the HTTP server and the job queue.

Endpoints:
  POST /radarr    Radarr "On Import" webhook
  POST /sonarr    Sonarr "On Import" webhook
  GET  /healthz   health and queue depth
  GET  /metrics   Prometheus metrics

When schedule.enabled is set, every library is swept on schedule.cron.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "host to bind to")
	serveCmd.Flags().Int("port", 5000, "port to listen on")
	serveCmd.Flags().Int("workers", 1, "concurrent transcode jobs")
	serveCmd.Flags().Bool("schedule", false, "enable scheduled library sweeps")
	serveCmd.Flags().Bool("sweep-on-start", false, "sweep every library once at startup")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("queue.workers", serveCmd.Flags().Lookup("workers"))
	mustBindPFlag("schedule.enabled", serveCmd.Flags().Lookup("schedule"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.log.Logger

	ctx, cancel := signalContext()
	defer cancel()

	bins, err := check.New(logging.WithComponent(logger, "check")).Deps(ctx, a.cfg)
	if err != nil {
		return err
	}
	runner, err := job.NewFromConfig(a.cfg, bins, logger)
	if err != nil {
		return err
	}

	q := queue.New(a.cfg.Queue, func(ctx context.Context, r queue.Request) {
		runner.Run(ctx, r.Path, r.Category)
	}, logging.WithComponent(logger, "queue"))

	_, resolver := category.FromConfig(a.cfg)
	srv := webhook.NewServer(a.cfg.Server, a.cfg.Webhook, q, resolver, logging.WithComponent(logger, "http"), Version)

	libs := category.Libraries(a.cfg)
	var sched *scheduler.Scheduler
	sweepOnStart, _ := cmd.Flags().GetBool("sweep-on-start")
	if a.cfg.Schedule.Enabled || sweepOnStart {
		if sched, err = scheduler.New(a.cfg, libs, q, logging.WithComponent(logger, "scheduler")); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.Run(gctx) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})
	if sched != nil && a.cfg.Schedule.Enabled {
		g.Go(func() error { return sched.Run(gctx) })
	}
	if sched != nil && sweepOnStart {
		g.Go(func() error {
			sched.Sweep(gctx, "startup")
			return nil
		})
	}

	logger.Info("mediasweep serving",
		slog.String("version", Version),
		slog.String("address", a.cfg.Server.Address()),
		slog.Int("workers", a.cfg.Queue.Workers),
		slog.Bool("schedule", a.cfg.Schedule.Enabled))

	err = g.Wait()
	logger.Info("mediasweep stopped")
	return err
}
