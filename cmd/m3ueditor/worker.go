package main

import (
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

var errWorkerNeedsRedis = errors.New("worker: REDIS_URL is required to share the job queue with the API")

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run import workers against the shared Redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return errWorkerNeedsRedis
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := ctx.open(runCtx)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.log.WithField("workers", rt.cfg.Workers).Info("worker started")
			if noScheduler {
				rt.pool().Run(runCtx)
				return nil
			}
			var wg sync.WaitGroup
			runWorkers(runCtx, &wg, rt)
			wg.Wait()
			rt.log.Info("worker stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not enqueue due syncs from this process")
	return cmd
}
