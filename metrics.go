package togglekit

import (
	"sync"
	"time"
)

// Metrics is the usage summary for one flag, or the aggregate across all
// flags when FlagKey is empty.
type Metrics struct {
	FlagKey          string         `json:"flag_key,omitempty"`
	TotalEvaluations int            `json:"total_evaluations"`
	BySource         map[Source]int `json:"by_source"`
	ByEnvironment    map[string]int `json:"by_environment"`
	// AvgLatency is an incremental mean over all recorded evaluations.
	AvgLatency time.Duration `json:"avg_latency_ns"`
	// UniqueIdentities is a lower-bound estimate of distinct requester
	// identities; exact up to MaxTrackedIdentities per flag.
	UniqueIdentities int `json:"unique_identities"`
}

// usageCollector passively observes every evaluation, keeping counters and
// a bounded per-flag history. Counters are loss-tolerant by design, so one
// coarse mutex is enough; evaluation correctness never depends on them.
type usageCollector struct {
	mu         sync.Mutex
	perFlag    map[string]*flagUsage
	historyCap int
	// pending holds per-flag counts accumulated since the last reporter
	// flush.
	pending map[string]int
}

type flagUsage struct {
	total            int
	bySource         map[Source]int
	byEnvironment    map[string]int
	avgLatency       float64 // nanoseconds, incremental mean
	identities       map[string]struct{}
	identityOverflow bool

	// history is a FIFO ring: start indexes the oldest entry once the
	// buffer has wrapped.
	history []*EvaluationResult
	start   int
}

func newUsageCollector(historyCap int) *usageCollector {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCapacity
	}
	return &usageCollector{
		perFlag:    make(map[string]*flagUsage),
		historyCap: historyCap,
		pending:    make(map[string]int),
	}
}

func (c *usageCollector) record(result *EvaluationResult, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.perFlag[result.FlagKey]
	if !ok {
		u = &flagUsage{
			bySource:      make(map[Source]int),
			byEnvironment: make(map[string]int),
			identities:    make(map[string]struct{}),
		}
		c.perFlag[result.FlagKey] = u
	}

	u.total++
	u.bySource[result.Source]++
	if result.Context.Environment != "" {
		u.byEnvironment[result.Context.Environment]++
	}
	u.avgLatency += (float64(latency.Nanoseconds()) - u.avgLatency) / float64(u.total)

	identity := result.Context.Identity()
	if _, seen := u.identities[identity]; !seen {
		if len(u.identities) < MaxTrackedIdentities {
			u.identities[identity] = struct{}{}
		} else {
			u.identityOverflow = true
		}
	}

	if len(u.history) < c.historyCap {
		u.history = append(u.history, result)
	} else {
		u.history[u.start] = result
		u.start = (u.start + 1) % c.historyCap
	}

	c.pending[result.FlagKey]++
}

func (c *usageCollector) metricsFor(flagKey string) Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		FlagKey:       flagKey,
		BySource:      make(map[Source]int),
		ByEnvironment: make(map[string]int),
	}
	u, ok := c.perFlag[flagKey]
	if !ok {
		return m
	}
	m.TotalEvaluations = u.total
	for s, n := range u.bySource {
		m.BySource[s] = n
	}
	for env, n := range u.byEnvironment {
		m.ByEnvironment[env] = n
	}
	m.AvgLatency = time.Duration(u.avgLatency)
	m.UniqueIdentities = len(u.identities)
	return m
}

func (c *usageCollector) aggregate() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		BySource:      make(map[Source]int),
		ByEnvironment: make(map[string]int),
	}
	var weightedLatency float64
	for _, u := range c.perFlag {
		m.TotalEvaluations += u.total
		for s, n := range u.bySource {
			m.BySource[s] += n
		}
		for env, n := range u.byEnvironment {
			m.ByEnvironment[env] += n
		}
		weightedLatency += u.avgLatency * float64(u.total)
		m.UniqueIdentities += len(u.identities)
	}
	if m.TotalEvaluations > 0 {
		m.AvgLatency = time.Duration(weightedLatency / float64(m.TotalEvaluations))
	}
	return m
}

// historyFor returns up to limit most recent evaluations in chronological
// order.
func (c *usageCollector) historyFor(flagKey string, limit int) []*EvaluationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.perFlag[flagKey]
	if !ok {
		return nil
	}
	n := len(u.history)
	if limit > n {
		limit = n
	}
	out := make([]*EvaluationResult, 0, limit)
	// Walk the ring from the oldest of the requested window forward.
	for i := n - limit; i < n; i++ {
		out = append(out, u.history[(u.start+i)%n])
	}
	return out
}

func (c *usageCollector) drop(flagKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.perFlag, flagKey)
	delete(c.pending, flagKey)
}

// drainPending returns the counts accumulated since the previous drain and
// resets them. Used by the usage reporter.
func (c *usageCollector) drainPending() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	out := c.pending
	c.pending = make(map[string]int)
	return out
}

// restorePending merges counts back after a failed report so they are
// retried on the next flush.
func (c *usageCollector) restorePending(counts map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, n := range counts {
		c.pending[k] += n
	}
}
