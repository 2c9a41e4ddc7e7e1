package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/logging"
	"github.com/voyagen/m3ueditor/internal/service"
	"github.com/voyagen/m3ueditor/internal/store"
)

// Importer runs playlist and EPG imports; *service.Syncer implements it.
type Importer interface {
	ImportPlaylist(ctx context.Context, id int64, force bool) (int, error)
	ImportEpg(ctx context.Context, id int64, force bool) (int, error)
}

// dequeueBackoff is the pause after a failed dequeue, so a down backend does not spin the workers.
const dequeueBackoff = 2 * time.Second

// ErrorReporter receives job failures; logging.CaptureError in production.
type ErrorReporter func(err error, tags map[string]string)

// Pool runs jobs from a Queue on a fixed number of goroutines.
type Pool struct {
	queue    Queue
	importer Importer
	store    store.Store
	workers  int
	log      logrus.FieldLogger
	report   ErrorReporter
	backoff  time.Duration
}

// NewPool creates a pool of n workers. s is used for EPG mapping jobs.
func NewPool(q Queue, imp Importer, s store.Store, n int, log logrus.FieldLogger) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{
		queue:    q,
		importer: imp,
		store:    s,
		workers:  n,
		log:      logging.Component(log, "worker"),
		report:   logging.CaptureError,
		backoff:  dequeueBackoff,
	}
}

// SetReporter replaces the error reporter.
func (p *Pool) SetReporter(r ErrorReporter) { p.report = r }

// Run starts the workers and blocks until ctx is done and every in-flight job returned.
func (p *Pool) Run(ctx context.Context) {
	p.log.WithField("workers", p.workers).Info("worker pool started")
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.loop(ctx, n)
		}(i)
	}
	wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) loop(ctx context.Context, n int) {
	log := p.log.WithField("worker", n)
	for ctx.Err() == nil {
		job, err := p.queue.Next(ctx)
		if err != nil {
			log.WithError(err).Warn("dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		if job == nil {
			continue
		}
		p.Handle(ctx, *job)
	}
}

// Handle runs a single job. Failures are logged and reported, never returned:
// the failure is already recorded on the record's status.
func (p *Pool) Handle(ctx context.Context, job cache.SyncJob) {
	log := p.log.WithFields(logrus.Fields{"job": job.Kind, "id": job.ID, "force": job.Force})
	n, err := p.run(ctx, job)
	switch {
	case errors.Is(err, service.ErrSkipped):
		log.Debug("job skipped")
	case err != nil:
		log.WithError(err).Error("job failed")
		if p.report != nil {
			p.report(err, map[string]string{
				"job_kind": job.Kind,
				"job_id":   strconv.FormatInt(job.ID, 10),
				"user_id":  strconv.FormatInt(job.UserID, 10),
			})
		}
	default:
		log.WithField("count", n).Info("job done")
	}
}

func (p *Pool) run(ctx context.Context, job cache.SyncJob) (int, error) {
	switch job.Kind {
	case cache.JobPlaylist:
		return p.importer.ImportPlaylist(ctx, job.ID, job.Force)
	case cache.JobEpg:
		return p.importer.ImportEpg(ctx, job.ID, job.Force)
	case cache.JobMapEpg:
		return service.MapChannelsToEpg(ctx, p.store, job.UserID, job.ID, job.ChannelIDs, job.Overwrite)
	default:
		return 0, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
