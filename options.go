package togglekit

import (
	"context"
	"log/slog"
	"time"

	"github.com/togglekit/togglekit-go/flagengine/evalcontext"
)

type Option func(e *Engine)

var _ = []Option{
	WithLogger(nil),
	WithContext(context.Background()),
	WithPersistence(nil),
	WithDefaultContext(nil),
	WithHistoryCapacity(0),
	WithRemoteSource("", 0),
	WithUsageReporting("", 0),
	WithRequestTimeout(0),
	WithRetries(3, 1*time.Second),
	WithCustomHeaders(nil),
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithContext sets the context governing background workers; cancelling it
// stops the remote source and the usage reporter.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// WithPersistence wires a load/save adapter. The engine loads it once at
// construction and saves after each mutation, best-effort.
func WithPersistence(store Persistence) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithDefaultContext sets the provider consulted when Evaluate is called
// with a nil context, typically supplying the ambient environment name and
// system version.
func WithDefaultContext(provider func() evalcontext.Context) Option {
	return func(e *Engine) {
		if provider != nil {
			e.defaultContext = provider
		}
	}
}

// WithHistoryCapacity overrides the per-flag evaluation history cap.
func WithHistoryCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.config.historyCapacity = n
		}
	}
}

// WithRemoteSource enables polling url for a ConfigDocument every interval.
func WithRemoteSource(url string, interval time.Duration) Option {
	return func(e *Engine) {
		e.config.remoteURL = url
		if interval > 0 {
			e.config.pollInterval = interval
		}
	}
}

// WithUsageReporting enables periodic posting of aggregated usage counts
// to url.
func WithUsageReporting(url string, interval time.Duration) Option {
	return func(e *Engine) {
		e.config.reportURL = url
		if interval > 0 {
			e.config.reportInterval = interval
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.config.timeout = timeout
		}
	}
}

func WithRetries(count int, waitTime time.Duration) Option {
	return func(e *Engine) {
		e.client.SetRetryCount(count)
		e.client.SetRetryWaitTime(waitTime)
	}
}

func WithCustomHeaders(headers map[string]string) Option {
	return func(e *Engine) {
		e.client.SetHeaders(headers)
	}
}
