package togglekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// remoteSource polls an HTTP endpoint serving a ConfigDocument and imports
// it into the engine when it changes. Fetch failures back off
// exponentially and never affect the evaluation path.
type remoteSource struct {
	engine   *Engine
	url      string
	interval time.Duration
	delay    *retryDelay
	log      *slog.Logger

	lastExportedAt string
}

func newRemoteSource(engine *Engine, url string, interval time.Duration) *remoteSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &remoteSource{
		engine:   engine,
		url:      url,
		interval: interval,
		delay:    newRetryDelay(),
		log: engine.log.With(
			slog.String("worker", "remote"),
			slog.String("url", url),
		),
	}
}

func (r *remoteSource) run(ctx context.Context) {
	// Fetch once at startup so the engine does not wait a full interval
	// for its initial configuration.
	r.poll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *remoteSource) poll(ctx context.Context) {
	if err := r.fetch(ctx); err != nil {
		r.log.Warn("failed to fetch remote configuration", "error", err)
		r.delay.sleep(ctx)
		return
	}
	r.delay.reset()
}

func (r *remoteSource) fetch(ctx context.Context) error {
	var doc ConfigDocument
	resp, err := r.engine.client.R().
		SetContext(ctx).
		SetResult(&doc).
		Get(r.url)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("remote configuration fetch returned %d %s", resp.StatusCode(), resp.Status())
	}

	if doc.ExportedAt != "" && doc.ExportedAt == r.lastExportedAt {
		return nil
	}
	if err := r.engine.ImportConfiguration(&doc); err != nil {
		return err
	}
	r.lastExportedAt = doc.ExportedAt
	r.log.Debug("remote configuration imported", "flags", len(doc.Flags))
	return nil
}
