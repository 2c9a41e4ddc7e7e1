package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voyagen/m3ueditor/internal/server"
	"github.com/voyagen/m3ueditor/internal/worker"
)

var errNoWorkerNeedsRedis = errors.New("serve: --no-worker needs REDIS_URL, otherwise queued imports are never run")

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noWorker bool
	var rateLimit int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the import workers and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if noWorker && cfg.RedisURL == "" {
				return errNoWorkerNeedsRedis
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := ctx.open(runCtx)
			if err != nil {
				return err
			}
			defer rt.Close()

			tok, err := tokens(rt.cfg)
			if err != nil {
				return err
			}

			var wg sync.WaitGroup
			if !noWorker {
				runWorkers(runCtx, &wg, rt)
			}

			srv := server.New(server.Options{
				Store:     rt.store,
				Tokens:    tok,
				Queue:     rt.queue,
				Folders:   rt.folders,
				Metrics:   rt.metrics,
				Log:       rt.log,
				Port:      rt.cfg.ServerPort,
				RateLimit: rateLimit,
			})
			err = srv.ListenAndServe(runCtx)
			stop()
			wg.Wait()
			return err
		},
	}

	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Only serve the API; imports run in separate worker processes")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "Requests per minute per user or client IP")
	return cmd
}

// runWorkers starts the job pool and the scheduler; both stop when ctx is done.
func runWorkers(ctx context.Context, wg *sync.WaitGroup, rt *app) {
	pool := rt.pool()
	sched := worker.NewScheduler(rt.store, rt.queue, rt.cfg.SchedulerInterval, rt.log)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()
}
