package togglekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/togglekit/togglekit-go/flagengine/conditions"
	"github.com/togglekit/togglekit-go/flagengine/evalcontext"
	"github.com/togglekit/togglekit-go/flagengine/flags"
	"github.com/togglekit/togglekit-go/flagengine/utils"
)

type engineConfig struct {
	historyCapacity int
	timeout         time.Duration
	remoteURL       string
	pollInterval    time.Duration
	reportURL       string
	reportInterval  time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		historyCapacity: DefaultHistoryCapacity,
		timeout:         DefaultTimeout,
		pollInterval:    DefaultPollInterval,
		reportInterval:  DefaultReportInterval,
	}
}

// Engine is the feature-flag evaluation engine. It is safe for concurrent
// use: many goroutines may evaluate while an administrative path mutates
// flags and overrides.
type Engine struct {
	config         engineConfig
	log            *slog.Logger
	client         *resty.Client
	ctx            context.Context
	cancel         context.CancelFunc
	registry       *flagRegistry
	overrides      *overrideStore
	usage          *usageCollector
	bus            *changeBus
	store          Persistence
	defaultContext func() evalcontext.Context
}

// Persistence loads an initial configuration at startup and is asked to
// save after each mutation. Both calls are best-effort from the engine's
// point of view; failures are logged, never surfaced to evaluation.
type Persistence interface {
	Load() (*ConfigDocument, error)
	Save(doc *ConfigDocument) error
}

// New creates an Engine with the given options applied.
func New(options ...Option) *Engine {
	e := &Engine{
		config:         defaultEngineConfig(),
		log:            slog.Default(),
		client:         resty.New(),
		ctx:            context.Background(),
		registry:       newFlagRegistry(),
		overrides:      newOverrideStore(),
		bus:            newChangeBus(),
		defaultContext: func() evalcontext.Context { return evalcontext.Context{} },
	}

	for _, opt := range options {
		opt(e)
	}

	e.usage = newUsageCollector(e.config.historyCapacity)
	e.client.SetTimeout(e.config.timeout)
	e.client.SetLogger(slogAdapter{log: e.log})
	e.client.OnBeforeRequest(newRequestLogMiddleware(e.log))
	e.client.OnAfterResponse(newResponseLogMiddleware(e.log))

	e.ctx, e.cancel = context.WithCancel(e.ctx)

	if e.store != nil {
		if doc, err := e.store.Load(); err != nil {
			e.log.Warn("failed to load persisted configuration", "error", err)
		} else if doc != nil {
			if err := e.importConfiguration(doc); err != nil {
				e.log.Warn("failed to import persisted configuration", "error", err)
			}
		}
	}

	if e.config.remoteURL != "" {
		r := newRemoteSource(e, e.config.remoteURL, e.config.pollInterval)
		go r.run(e.ctx)
	}
	if e.config.reportURL != "" {
		r := newUsageReporter(e, e.config.reportURL, e.config.reportInterval)
		go r.run(e.ctx)
	}

	return e
}

// Close stops background workers and closes all change subscriptions.
func (e *Engine) Close() {
	e.cancel()
	e.bus.close()
}

// RegisterFlag validates the flag and admits it into the registry. A
// validation failure leaves the registry untouched.
func (e *Engine) RegisterFlag(flag *flags.FeatureFlag) error {
	if err := e.registry.register(flag); err != nil {
		return err
	}
	if report := validateFlag(flag); len(report.Warnings) > 0 {
		e.log.Warn("flag registered with warnings", "flag", flag.Key, "warnings", report.Warnings)
	}
	e.bus.publish(newChangeEvent(ChangeFlagRegistered, flag.Key))
	e.persist()
	return nil
}

// UpdateFlag merges the patch into the existing flag, revalidates the
// merged result and commits it. The flag key is immutable.
func (e *Engine) UpdateFlag(key string, patch FlagPatch) error {
	if _, err := e.registry.update(key, patch); err != nil {
		return err
	}
	e.bus.publish(newChangeEvent(ChangeFlagUpdated, key))
	e.persist()
	return nil
}

// UnregisterFlag removes the flag and discards its metrics and history.
// Unknown keys are a no-op.
func (e *Engine) UnregisterFlag(key string) {
	if !e.registry.remove(key) {
		return
	}
	e.usage.drop(key)
	e.bus.publish(newChangeEvent(ChangeFlagUnregistered, key))
	e.persist()
}

// GetFlag returns the flag definition for key, if registered.
func (e *Engine) GetFlag(key string) (*flags.FeatureFlag, bool) {
	return e.registry.get(key)
}

// GetAllFlags returns all registered flags sorted by key.
func (e *Engine) GetAllFlags() []*flags.FeatureFlag {
	return e.registry.all()
}

// ValidateFlag reports structural validity without mutating any state.
func (e *Engine) ValidateFlag(flag *flags.FeatureFlag) ValidationReport {
	return validateFlag(flag)
}

// SetUserOverride forces a value for one user on one flag. The override
// preempts default and environment resolution, but not the kill switch.
func (e *Engine) SetUserOverride(userID, key string, value flags.Value) error {
	if _, ok := e.registry.get(key); !ok {
		return NotFoundError{Key: key}
	}
	e.overrides.setUser(userID, key, value)
	e.mirrorOverrides(key)
	e.bus.publish(newChangeEvent(ChangeOverrideSet, key))
	e.persist()
	return nil
}

// RemoveUserOverride deletes a user override; absent entries are a no-op.
func (e *Engine) RemoveUserOverride(userID, key string) {
	if !e.overrides.removeUser(userID, key) {
		return
	}
	e.mirrorOverrides(key)
	e.bus.publish(newChangeEvent(ChangeOverrideRemoved, key))
	e.persist()
}

// SetPluginOverride forces a value for one plugin on one flag.
func (e *Engine) SetPluginOverride(pluginID, key string, value flags.Value) error {
	if _, ok := e.registry.get(key); !ok {
		return NotFoundError{Key: key}
	}
	e.overrides.setPlugin(pluginID, key, value)
	e.mirrorOverrides(key)
	e.bus.publish(newChangeEvent(ChangeOverrideSet, key))
	e.persist()
	return nil
}

// RemovePluginOverride deletes a plugin override; absent entries are a no-op.
func (e *Engine) RemovePluginOverride(pluginID, key string) {
	if !e.overrides.removePlugin(pluginID, key) {
		return
	}
	e.mirrorOverrides(key)
	e.bus.publish(newChangeEvent(ChangeOverrideRemoved, key))
	e.persist()
}

// mirrorOverrides republishes the flag with its override mirror fields
// rebuilt from the store.
func (e *Engine) mirrorOverrides(key string) {
	users, plugins := e.overrides.overridesForFlag(key)
	e.registry.mutate(key, func(f *flags.FeatureFlag) {
		f.UserOverrides = users
		f.PluginOverrides = plugins
	})
}

// Evaluate resolves the value a caller should observe for key under ctx.
// It is total: missing flags, malformed conditions and internal panics all
// degrade to a default-sourced result, never an error.
func (e *Engine) Evaluate(key string, ctx *evalcontext.Context) *EvaluationResult {
	start := time.Now()
	resolved := e.resolveContext(ctx)
	result := e.evaluate(key, resolved)
	result.Timestamp = time.Now().UTC()
	result.Context = resolved
	e.usage.record(result, time.Since(start))
	return result
}

func (e *Engine) resolveContext(ctx *evalcontext.Context) evalcontext.Context {
	if ctx == nil {
		return e.defaultContext()
	}
	return *ctx
}

func (e *Engine) evaluate(key string, ctx evalcontext.Context) (result *EvaluationResult) {
	flag, found := e.registry.get(key)

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("evaluation panic", "flag", key, "error", fmt.Sprint(r))
			value := flags.Value{}
			if found {
				value = flag.DefaultValue
			}
			result = &EvaluationResult{
				FlagKey: key,
				Value:   value,
				Source:  SourceDefault,
				Reason:  fmt.Sprintf("Evaluation error: %v", r),
			}
		}
	}()

	if !found {
		return &EvaluationResult{
			FlagKey: key,
			Value:   flags.NewBool(false),
			Source:  SourceDefault,
			Reason:  "Flag not found",
		}
	}

	// The kill switch dominates everything, overrides included.
	if !flag.Enabled {
		return &EvaluationResult{
			FlagKey: key,
			Value:   flags.ZeroOf(flag.Kind),
			Source:  SourceDefault,
			Reason:  "Flag is globally disabled",
		}
	}

	if ctx.UserID != "" {
		if v, ok := e.overrides.userOverride(ctx.UserID, key); ok {
			return &EvaluationResult{
				FlagKey: key,
				Value:   v,
				Source:  SourceUserOverride,
				Reason:  fmt.Sprintf("User override for %q", ctx.UserID),
			}
		}
	}

	if ctx.PluginID != "" {
		if v, ok := e.overrides.pluginOverride(ctx.PluginID, key); ok {
			return &EvaluationResult{
				FlagKey: key,
				Value:   v,
				Source:  SourcePluginOverride,
				Reason:  fmt.Sprintf("Plugin override for %q", ctx.PluginID),
			}
		}
	}

	value := flag.DefaultValue
	source := SourceDefault
	reason := "Using default value"
	if ctx.Environment != "" {
		if v, ok := flag.Environments[ctx.Environment]; ok {
			value = v
			source = SourceEnvironment
			reason = fmt.Sprintf("Environment value for %q", ctx.Environment)
		}
	}

	// Conditions act as an AND gate on boolean flags: the first failing
	// condition forces false, as does a passing condition when the
	// candidate value is already false.
	conditionsEvaluated := 0
	for i := range flag.Conditions {
		c := &flag.Conditions[i]
		conditionsEvaluated++
		matched := conditions.Matches(c, &ctx)
		if flag.Kind != flags.Boolean {
			continue
		}
		if !matched {
			return &EvaluationResult{
				FlagKey:             key,
				Value:               flags.NewBool(false),
				Source:              SourceCondition,
				Reason:              conditionReason("Condition not met", c),
				ConditionsEvaluated: conditionsEvaluated,
			}
		}
		if !value.AsBool() {
			return &EvaluationResult{
				FlagKey:             key,
				Value:               flags.NewBool(false),
				Source:              SourceCondition,
				Reason:              conditionReason("Condition met but flag value is false", c),
				ConditionsEvaluated: conditionsEvaluated,
			}
		}
	}

	var rolloutBucket *int
	if flag.Kind == flags.Boolean && value.AsBool() && flag.RolloutPercentage != nil && *flag.RolloutPercentage < 100 {
		percentage := *flag.RolloutPercentage
		bucket := utils.BucketForIdentity(flag.Key, ctx.Identity())
		rolloutBucket = &bucket
		if bucket >= percentage {
			return &EvaluationResult{
				FlagKey:             key,
				Value:               flags.NewBool(false),
				Source:              SourceRollout,
				Reason:              fmt.Sprintf("Outside gradual rollout of %d%%", percentage),
				ConditionsEvaluated: conditionsEvaluated,
				RolloutBucket:       rolloutBucket,
			}
		}
		reason = fmt.Sprintf("%s (within gradual rollout of %d%%)", reason, percentage)
	}

	return &EvaluationResult{
		FlagKey:             key,
		Value:               value,
		Source:              source,
		Reason:              reason,
		ConditionsEvaluated: conditionsEvaluated,
		RolloutBucket:       rolloutBucket,
	}
}

func conditionReason(prefix string, c *conditions.Condition) string {
	if c.Description != "" {
		return prefix + ": " + c.Description
	}
	return fmt.Sprintf("%s: %s %s", prefix, c.Attribute, c.Operator)
}

// IsEnabled reports whether the flag evaluates to boolean true under ctx.
func (e *Engine) IsEnabled(key string, ctx *evalcontext.Context) bool {
	return e.Evaluate(key, ctx).Enabled()
}

// GetValue returns the resolved value for key under ctx.
func (e *Engine) GetValue(key string, ctx *evalcontext.Context) flags.Value {
	return e.Evaluate(key, ctx).Value
}

// EvaluateMultiple evaluates each key independently and returns the
// results keyed by flag key.
func (e *Engine) EvaluateMultiple(keys []string, ctx *evalcontext.Context) map[string]*EvaluationResult {
	results := make(map[string]*EvaluationResult, len(keys))
	for _, key := range keys {
		results[key] = e.Evaluate(key, ctx)
	}
	return results
}

// GetEnabledFlags returns the keys of all registered flags that evaluate
// to enabled under ctx, sorted by key.
func (e *Engine) GetEnabledFlags(ctx *evalcontext.Context) []string {
	var enabled []string
	for _, flag := range e.registry.all() {
		if e.IsEnabled(flag.Key, ctx) {
			enabled = append(enabled, flag.Key)
		}
	}
	return enabled
}

// GetUsageMetrics returns usage metrics for one flag, or the aggregate
// across all flags when no key is given.
func (e *Engine) GetUsageMetrics(flagKey ...string) Metrics {
	if len(flagKey) > 0 && flagKey[0] != "" {
		return e.usage.metricsFor(flagKey[0])
	}
	return e.usage.aggregate()
}

// GetEvaluationHistory returns up to limit most recent evaluations of key
// in chronological order. A non-positive limit uses DefaultHistoryLimit.
func (e *Engine) GetEvaluationHistory(key string, limit int) []*EvaluationResult {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.usage.historyFor(key, limit)
}

// Subscribe returns a channel of change events and a cancel function.
// Publication never blocks mutations: slow subscribers drop events.
func (e *Engine) Subscribe() (<-chan ChangeEvent, func()) {
	return e.bus.subscribe()
}

func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.ExportConfiguration()); err != nil {
		e.log.Warn("failed to persist configuration", "error", err)
	}
}
