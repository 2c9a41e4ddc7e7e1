// Package worker runs background sync jobs: a queue, a worker pool and a
// scheduler that enqueues due playlists and EPGs.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/voyagen/m3ueditor/internal/cache"
)

// Queue carries sync jobs from the API and the scheduler to the workers.
type Queue interface {
	// Dispatch enqueues a job.
	Dispatch(ctx context.Context, job cache.SyncJob) error
	// Next blocks for a job. It returns (nil, nil) when nothing arrived
	// before its poll timeout or ctx is done, so callers can loop.
	Next(ctx context.Context) (*cache.SyncJob, error)
}

// RedisQueue is a Queue on a Redis list, shared by every process using the same Redis.
type RedisQueue struct {
	r       *cache.Redis
	name    string
	timeout time.Duration
}

// NewRedisQueue returns a queue on cache.DefaultQueue polling every 5s.
func NewRedisQueue(r *cache.Redis) *RedisQueue {
	return &RedisQueue{r: r, name: cache.DefaultQueue, timeout: 5 * time.Second}
}

func (q *RedisQueue) Dispatch(ctx context.Context, job cache.SyncJob) error {
	if err := cache.Enqueue(ctx, q.r, q.name, job); err != nil {
		return fmt.Errorf("dispatch %s %d: %w", job.Kind, job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Next(ctx context.Context) (*cache.SyncJob, error) {
	return cache.Dequeue(ctx, q.r, q.name, q.timeout)
}

// LocalQueue is an in-process buffered Queue used when Redis is not configured.
// Jobs are lost on restart; the scheduler re-enqueues anything still due.
type LocalQueue struct {
	ch      chan cache.SyncJob
	timeout time.Duration
}

// NewLocalQueue creates a queue holding up to size pending jobs.
func NewLocalQueue(size int) *LocalQueue {
	if size <= 0 {
		size = 256
	}
	return &LocalQueue{ch: make(chan cache.SyncJob, size), timeout: 5 * time.Second}
}

// Dispatch blocks while the buffer is full, until ctx is done.
func (q *LocalQueue) Dispatch(ctx context.Context, job cache.SyncJob) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch %s %d: %w", job.Kind, job.ID, ctx.Err())
	}
}

func (q *LocalQueue) Next(ctx context.Context) (*cache.SyncJob, error) {
	t := time.NewTimer(q.timeout)
	defer t.Stop()
	select {
	case job := <-q.ch:
		return &job, nil
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Len reports the number of pending jobs.
func (q *LocalQueue) Len() int { return len(q.ch) }
