package togglekit

import (
	"time"
)

const (
	// Number of seconds to wait for a remote request to
	// complete before terminating the request.
	DefaultTimeout = 10 * time.Second

	// Cap of the per-flag evaluation history ring buffer.
	DefaultHistoryCapacity = 1000

	// Default number of history entries returned when no limit is given.
	DefaultHistoryLimit = 100

	// Upper bound on distinct identities tracked per flag; beyond it the
	// unique-identity metric becomes a lower-bound estimate.
	MaxTrackedIdentities = 10000

	// How often the remote configuration source polls for changes.
	DefaultPollInterval = 60 * time.Second

	// How often aggregated usage counts are reported upstream.
	DefaultReportInterval = 10 * time.Second
)
