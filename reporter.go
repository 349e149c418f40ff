package togglekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// usageReporter periodically posts aggregated evaluation counts to a
// collector endpoint. Counts drained for a failed report are merged back
// and retried on the next tick.
type usageReporter struct {
	engine   *Engine
	url      string
	interval time.Duration
	log      *slog.Logger
}

func newUsageReporter(engine *Engine, url string, interval time.Duration) *usageReporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &usageReporter{
		engine:   engine,
		url:      url,
		interval: interval,
		log: engine.log.With(
			slog.String("worker", "reporter"),
			slog.String("url", url),
		),
	}
}

func (r *usageReporter) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.flush(ctx); err != nil {
				r.log.Warn("failed to report usage data", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *usageReporter) flush(ctx context.Context) error {
	counts := r.engine.usage.drainPending()
	if len(counts) == 0 {
		return nil
	}
	resp, err := r.engine.client.R().
		SetContext(ctx).
		SetBody(counts).
		Post(r.url)
	if err != nil {
		r.engine.usage.restorePending(counts)
		return err
	}
	if !resp.IsSuccess() {
		r.engine.usage.restorePending(counts)
		return fmt.Errorf("usage report returned %d %s", resp.StatusCode(), resp.Status())
	}
	return nil
}
