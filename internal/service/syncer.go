package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/fetcher"
	"github.com/voyagen/m3ueditor/internal/logging"
	"github.com/voyagen/m3ueditor/internal/models"
	"github.com/voyagen/m3ueditor/internal/store"
)

// ErrSkipped is returned when a sync did not run because the record is not
// due yet or another run holds its lock.
var ErrSkipped = errors.New("sync skipped")

// Fetcher downloads and parses remote playlists and guides.
type Fetcher interface {
	FetchM3U(ctx context.Context, url string) ([]fetcher.Entry, []byte, error)
	FetchXMLTV(ctx context.Context, url string) (*fetcher.Guide, []byte, error)
}

// Locker takes a per-record lock; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, kind string, id int64) (func(), error)
}

// Archiver keeps the raw downloaded document of a record.
type Archiver interface {
	Save(kind, uuid, name string, data []byte) (string, error)
}

// SyncObserver records sync outcomes.
type SyncObserver interface {
	ObserveSync(kind, status string, d time.Duration, count int)
}

// Options holds the optional collaborators of a Syncer.
type Options struct {
	Archive Archiver
	Locker  Locker
	Metrics SyncObserver
	Log     logrus.FieldLogger
	Now     func() time.Time
}

// Syncer runs playlist and EPG imports against a Store.
type Syncer struct {
	store   store.Store
	fetch   Fetcher
	archive Archiver
	locker  Locker
	metrics SyncObserver
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewSyncer creates a Syncer. Nil options fall back to no-ops.
func NewSyncer(s store.Store, f Fetcher, opts Options) *Syncer {
	sy := &Syncer{
		store:   s,
		fetch:   f,
		archive: opts.Archive,
		locker:  opts.Locker,
		metrics: opts.Metrics,
		log:     opts.Log,
		now:     opts.Now,
	}
	if sy.metrics == nil {
		sy.metrics = noopObserver{}
	}
	if sy.log == nil {
		sy.log = logging.Discard()
	}
	if sy.now == nil {
		sy.now = time.Now
	}
	return sy
}

type updateFunc func(ctx context.Context, s models.SyncState) error

// workFunc performs the import and reports the record count and, for EPGs, the programme count.
type workFunc func(ctx context.Context) (count, programmes int, err error)

// acquire takes the record lock when a Locker is configured. A lock held by
// another run yields ErrSkipped; any other lock error is logged and the run
// proceeds unlocked.
func (s *Syncer) acquire(ctx context.Context, kind string, id int64, log logrus.FieldLogger) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, kind, id)
	if errors.Is(err, cache.ErrLocked) {
		log.Info("sync already running, skipping")
		return nil, ErrSkipped
	}
	if err != nil {
		log.WithError(err).Warn("sync lock unavailable, running unlocked")
		return func() {}, nil
	}
	return unlock, nil
}

// track marks the record processing, runs work and always leaves the record
// completed or failed, including when work panics or ctx is cancelled.
func (s *Syncer) track(ctx context.Context, kind string, id int64, log logrus.FieldLogger, update updateFunc, work workFunc) (count int, err error) {
	start := s.now()
	if err := update(ctx, models.SyncState{Status: models.StatusProcessing, Synced: start}); err != nil {
		return 0, fmt.Errorf("mark processing: %w", err)
	}

	var programmes int
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.WithField("stack", string(debug.Stack())).Error("sync panicked")
		}

		state := models.SyncState{Status: models.StatusCompleted, Count: count, Programmes: programmes, Synced: s.now()}
		if err != nil {
			msg := err.Error()
			count = 0
			state = models.SyncState{Status: models.StatusFailed, Errors: &msg, Synced: s.now()}
		}
		if uerr := update(context.WithoutCancel(ctx), state); uerr != nil {
			log.WithError(uerr).Error("record sync state")
			if err == nil {
				err = uerr
			}
		}

		elapsed := s.now().Sub(start)
		s.metrics.ObserveSync(kind, string(state.Status), elapsed, count)
		entry := log.WithFields(logrus.Fields{"status": state.Status, "count": count, "duration": elapsed.String()})
		if err != nil {
			entry.WithError(err).Warn("sync failed")
		} else {
			entry.Info("sync completed")
		}
	}()

	count, programmes, err = work(ctx)
	return count, err
}

// keepRaw stores the downloaded document; failures are logged, never fatal.
func (s *Syncer) keepRaw(kind, uuid, name string, data []byte, log logrus.FieldLogger) {
	if s.archive == nil || len(data) == 0 {
		return
	}
	if _, err := s.archive.Save(kind, uuid, name, data); err != nil {
		log.WithError(err).Warn("save raw document")
	}
}

type noopObserver struct{}

func (noopObserver) ObserveSync(string, string, time.Duration, int) {}
