package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/logging"
	"github.com/voyagen/m3ueditor/internal/store"
)

// Scheduler periodically dispatches non-forced sync jobs for due playlists and EPGs.
type Scheduler struct {
	store    store.Store
	queue    Queue
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewScheduler creates a scheduler ticking every interval (default 1m).
func NewScheduler(s store.Store, q Queue, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{store: s, queue: q, interval: interval, log: logging.Component(log, "scheduler"), now: time.Now}
}

// Run ticks until ctx is done. The first pass runs immediately.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Warn("schedule pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Tick dispatches one job per due record and returns how many were dispatched.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	playlists, err := s.store.ListDuePlaylists(ctx, now)
	if err != nil {
		return 0, err
	}
	epgs, err := s.store.ListDueEpgs(ctx, now)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, p := range playlists {
		if err := s.queue.Dispatch(ctx, cache.SyncJob{Kind: cache.JobPlaylist, ID: p.ID, UserID: p.UserID}); err != nil {
			return n, err
		}
		n++
	}
	for _, e := range epgs {
		if err := s.queue.Dispatch(ctx, cache.SyncJob{Kind: cache.JobEpg, ID: e.ID, UserID: e.UserID}); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		s.log.WithFields(logrus.Fields{"playlists": len(playlists), "epgs": len(epgs)}).Info("dispatched due syncs")
	}
	return n, nil
}
