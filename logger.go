package togglekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// slogAdapter bridges resty's logging interface onto slog so HTTP noise
// from the remote source and the usage reporter lands in the engine's
// logger instead of resty's default.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Errorf(format string, v ...any) { a.log.Error(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Warnf(format string, v ...any)  { a.log.Warn(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Debugf(format string, v ...any) { a.log.Debug(fmt.Sprintf(format, v...)) }

// requestContextKey keys the values the request middleware stashes for
// the response middleware. A private type keeps them collision-free with
// anything else living in the request context.
type requestContextKey int

const (
	requestLoggerKey requestContextKey = iota
	requestStartKey
)

// newRequestLogMiddleware attaches a request-scoped child logger and the
// start time to the outgoing request context.
func newRequestLogMiddleware(log *slog.Logger) resty.RequestMiddleware {
	return func(c *resty.Client, req *resty.Request) error {
		reqLog := log.WithGroup("http").With(
			slog.String("method", req.Method),
			slog.String("url", req.URL),
		)
		reqLog.Debug("request")

		ctx := context.WithValue(req.Context(), requestLoggerKey, reqLog)
		ctx = context.WithValue(ctx, requestStartKey, time.Now())
		req.SetContext(ctx)
		return nil
	}
}

// newResponseLogMiddleware logs the response outcome, timed from the
// request middleware. Errors log at error level so a misbehaving
// configuration endpoint is visible without debug logging enabled.
func newResponseLogMiddleware(log *slog.Logger) resty.ResponseMiddleware {
	return func(c *resty.Client, resp *resty.Response) error {
		reqLog, _ := resp.Request.Context().Value(requestLoggerKey).(*slog.Logger)
		if reqLog == nil {
			reqLog = log
		}
		attrs := []any{
			slog.Int("status", resp.StatusCode()),
			slog.Int64("content_length", resp.Size()),
		}
		if start, ok := resp.Request.Context().Value(requestStartKey).(time.Time); ok {
			attrs = append(attrs, slog.Duration("duration", time.Since(start)))
		}
		reqLog = reqLog.With(attrs...)
		if resp.IsError() {
			reqLog.Error("error response")
		} else {
			reqLog.Debug("response")
		}
		return nil
	}
}
