package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/api"
	"github.com/rcliao/companion-state/internal/jobs"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run background maintenance",
		Run:   runServe,
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address (default from config, 127.0.0.1:8420)")
	cmd.Flags().Bool("no-jobs", false, "Disable background consolidation and reflections")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	listen, _ := cmd.Flags().GetString("listen")
	noJobs, _ := cmd.Flags().GetBool("no-jobs")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		exitErr("startup", err)
	}
	defer a.Close()

	if listen == "" {
		listen = a.cfg.Listen
	}

	var runner *jobs.Runner
	if !noJobs && !a.cfg.Jobs.Disabled {
		runner = jobs.New(a.store, a.memory, a.reflector, a.logger, jobs.Config{
			Interval:    a.cfg.Jobs.Interval,
			PairTimeout: a.cfg.Jobs.PairTimeout,
		})
		runner.Start(ctx)
	}

	srv := api.NewServer(listen, a.tracker, a.memory, a.reflector, a.logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}

	if runner != nil {
		runner.Stop()
	}
}
