package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/m3ueditor/internal/auth"
	"github.com/voyagen/m3ueditor/internal/cache"
	"github.com/voyagen/m3ueditor/internal/config"
	"github.com/voyagen/m3ueditor/internal/fetcher"
	"github.com/voyagen/m3ueditor/internal/logging"
	"github.com/voyagen/m3ueditor/internal/metrics"
	"github.com/voyagen/m3ueditor/internal/service"
	"github.com/voyagen/m3ueditor/internal/storage"
	"github.com/voyagen/m3ueditor/internal/store"
	"github.com/voyagen/m3ueditor/internal/worker"
)

// syncLockTTL bounds how long a crashed import can keep its record locked.
const syncLockTTL = time.Hour

var errMissingJWTSecret = errors.New("JWT_SECRET is required")

type commandContext struct {
	configFlag     *string
	migrationsFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, migrationsFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, migrationsFlag: migrationsFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path != "" {
			c.config, c.configErr = config.LoadFromFile(path)
		} else {
			c.config, c.configErr = config.Load()
		}
		if c.configErr != nil {
			c.configErr = fmt.Errorf("config: %w", c.configErr)
		}
	})
	return c.config, c.configErr
}

// migrationsURL resolves the migrations directory: the flag, ./migrations,
// then a migrations directory next to the executable.
func (c *commandContext) migrationsURL() string {
	dir := strings.TrimSpace(*c.migrationsFlag)
	if dir == "" {
		dir = "migrations"
		if _, err := os.Stat(dir); err != nil {
			if exe, e := os.Executable(); e == nil {
				dir = filepath.Join(filepath.Dir(exe), "migrations")
			}
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return "file://" + dir
}

// app holds the components shared by serve and worker.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	pg      *store.Postgres
	redis   *cache.Redis
	store   store.Store
	queue   worker.Queue
	locker  service.Locker
	folders *storage.Dir
	metrics *metrics.Metrics
	syncer  *service.Syncer
}

// open connects to Postgres (and Redis when configured) and builds the
// import pipeline. Without Redis the queue and locks are process-local.
func (c *commandContext) open(ctx context.Context) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err := logging.InitSentry(cfg.SentryDSN, version); err != nil {
		log.WithError(err).Warn("sentry disabled")
	}

	if err := store.RunMigrations(cfg.DatabaseURL, c.migrationsURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	rt := &app{
		cfg:     cfg,
		log:     log,
		pg:      pg,
		store:   pg,
		folders: storage.New(cfg.DataDir),
		metrics: metrics.New(),
	}
	if cfg.RedisURL != "" {
		rds, err := cache.New(cfg.RedisURL)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		if err := rds.Ping(ctx); err != nil {
			_ = rds.Close()
			pg.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rt.redis = rds
		rt.store = store.NewCachedStore(pg, rds, log)
		rt.queue = worker.NewRedisQueue(rds)
		rt.locker = cache.NewLocker(rds, syncLockTTL)
		log.Info("redis connected; caching and shared queue enabled")
	} else {
		rt.queue = worker.NewLocalQueue(256)
		rt.locker = worker.NewLocalLocker()
		log.Info("redis disabled; using in-process queue")
	}

	f := fetcher.New(fetcher.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Retry:     fetcher.DefaultRetryPolicy,
	})
	rt.syncer = service.NewSyncer(rt.store, f, service.Options{
		Archive: rt.folders,
		Locker:  rt.locker,
		Metrics: rt.metrics,
		Log:     log,
	})
	return rt, nil
}

func (rt *app) pool() *worker.Pool {
	return worker.NewPool(rt.queue, rt.syncer, rt.store, rt.cfg.Workers, rt.log)
}

func (rt *app) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	rt.pg.Close()
	logging.FlushSentry()
}

func tokens(cfg *config.Config) (*auth.Tokens, error) {
	if cfg.JWTSecret == "" {
		return nil, errMissingJWTSecret
	}
	return auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), nil
}
