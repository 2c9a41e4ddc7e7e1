package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/voyagen/m3ueditor/internal/cache"
)

// LocalLocker is the in-process counterpart of cache.Locker: one holder per
// kind/id, a second Lock returns cache.ErrLocked.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

func (l *LocalLocker) Lock(_ context.Context, kind string, id int64) (func(), error) {
	key := fmt.Sprintf("%s:%d", kind, id)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, cache.ErrLocked
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
