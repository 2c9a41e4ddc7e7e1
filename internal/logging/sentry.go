package logging

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initialises error reporting. An empty dsn leaves Sentry disabled,
// which makes CaptureError a no-op.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
		Tags:             map[string]string{"service": "m3ueditor"},
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	return nil
}

// CaptureError sends err to Sentry with the given tags.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
