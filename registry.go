package togglekit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/togglekit/togglekit-go/flagengine/conditions"
	"github.com/togglekit/togglekit-go/flagengine/flags"
	"github.com/togglekit/togglekit-go/flagengine/utils"
)

// flagRegistry owns the canonical flag set. Stored *FeatureFlag values are
// immutable once published; every mutation builds a new value and swaps
// the map slot under the write lock, so concurrent readers never observe a
// half-updated flag.
type flagRegistry struct {
	mu    sync.RWMutex
	flags map[string]*flags.FeatureFlag
}

func newFlagRegistry() *flagRegistry {
	return &flagRegistry{flags: make(map[string]*flags.FeatureFlag)}
}

func (r *flagRegistry) get(key string) (*flags.FeatureFlag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flags[key]
	return f, ok
}

func (r *flagRegistry) all() []*flags.FeatureFlag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*flags.FeatureFlag, 0, len(r.flags))
	for _, key := range sortedKeys(r.flags) {
		out = append(out, r.flags[key])
	}
	return out
}

func (r *flagRegistry) register(flag *flags.FeatureFlag) error {
	if report := validateFlag(flag); !report.Valid {
		return report.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.flags[flag.Key]; exists {
		return ValidationError{Errors: []string{fmt.Sprintf("flag %q is already registered", flag.Key)}}
	}
	stored := flag.Clone()
	now := time.Now().UTC()
	if stored.Metadata.CreatedAt.IsZero() {
		stored.Metadata.CreatedAt = now
	}
	if stored.Metadata.UpdatedAt.IsZero() {
		stored.Metadata.UpdatedAt = now
	}
	r.flags[stored.Key] = stored
	return nil
}

// upsert stores a validated flag unconditionally, replacing any existing
// entry. Used by configuration import, where re-registration is expected.
func (r *flagRegistry) upsert(flag *flags.FeatureFlag) error {
	if report := validateFlag(flag); !report.Valid {
		return report.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[flag.Key] = flag.Clone()
	return nil
}

// update merges the patch into a copy of the existing flag, revalidates
// the merged result and only then swaps it in. On validation failure the
// prior flag state is untouched.
func (r *flagRegistry) update(key string, patch FlagPatch) (*flags.FeatureFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.flags[key]
	if !ok {
		return nil, NotFoundError{Key: key}
	}
	merged := patch.applyTo(current)
	merged.Metadata.UpdatedAt = time.Now().UTC()
	if report := validateFlag(merged); !report.Valid {
		return nil, report.Err()
	}
	r.flags[key] = merged
	return merged, nil
}

// mutate republishes the flag under key after fn has adjusted a private
// copy. Used to mirror override changes onto the flag value.
func (r *flagRegistry) mutate(key string, fn func(*flags.FeatureFlag)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.flags[key]
	if !ok {
		return false
	}
	next := current.Clone()
	fn(next)
	r.flags[key] = next
	return true
}

func (r *flagRegistry) remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flags[key]; !ok {
		return false
	}
	delete(r.flags, key)
	return true
}

// FlagPatch is a partial flag update; nil fields leave the current value
// unchanged. The flag key is immutable and deliberately absent.
type FlagPatch struct {
	Name              *string                `json:"name,omitempty"`
	Description       *string                `json:"description,omitempty"`
	Kind              *flags.Kind            `json:"type,omitempty"`
	DefaultValue      *flags.Value           `json:"default_value,omitempty"`
	Enabled           *bool                  `json:"enabled,omitempty"`
	Environments      map[string]flags.Value `json:"environments,omitempty"`
	RolloutPercentage *int                   `json:"rollout_percentage,omitempty"`
	Conditions        []conditions.Condition `json:"conditions,omitempty"`
	Category          *string                `json:"category,omitempty"`
	Tags              []string               `json:"tags,omitempty"`
	Owner             *string                `json:"owner,omitempty"`
	Version           *string                `json:"version,omitempty"`
}

func (p FlagPatch) applyTo(current *flags.FeatureFlag) *flags.FeatureFlag {
	next := current.Clone()
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Kind != nil {
		next.Kind = *p.Kind
	}
	if p.DefaultValue != nil {
		next.DefaultValue = *p.DefaultValue
	}
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if p.Environments != nil {
		envs := make(map[string]flags.Value, len(p.Environments))
		for k, v := range p.Environments {
			envs[k] = v
		}
		next.Environments = envs
	}
	if p.RolloutPercentage != nil {
		pct := *p.RolloutPercentage
		next.RolloutPercentage = &pct
	}
	if p.Conditions != nil {
		next.Conditions = append([]conditions.Condition(nil), p.Conditions...)
	}
	if p.Category != nil {
		next.Metadata.Category = *p.Category
	}
	if p.Tags != nil {
		next.Metadata.Tags = append([]string(nil), p.Tags...)
	}
	if p.Owner != nil {
		next.Metadata.Owner = *p.Owner
	}
	if p.Version != nil {
		next.Metadata.Version = *p.Version
	}
	return next
}

// riskyKeyMarkers are key substrings that suggest an autonomous or
// self-modifying capability; combined with a wide rollout they draw a
// warning so operators take a second look.
var riskyKeyMarkers = []string{"autonomous", "self_modif", "self-modif", "auto_update", "unsafe"}

// validateFlag checks the structural validity of a flag. Kind/default
// mismatches and risky wide rollouts are warnings, not errors.
func validateFlag(flag *flags.FeatureFlag) ValidationReport {
	var report ValidationReport
	if flag == nil {
		report.Errors = append(report.Errors, "flag is nil")
		return report
	}
	if flag.Key == "" {
		report.Errors = append(report.Errors, "flag key is required")
	}
	if flag.Name == "" {
		report.Errors = append(report.Errors, "flag name is required")
	}
	if flag.Kind == "" {
		report.Errors = append(report.Errors, "flag type is required")
	} else if !flag.Kind.IsValid() {
		report.Errors = append(report.Errors, fmt.Sprintf("unrecognized flag type %q", flag.Kind))
	}
	if flag.RolloutPercentage != nil && (*flag.RolloutPercentage < 0 || *flag.RolloutPercentage > 100) {
		report.Errors = append(report.Errors, fmt.Sprintf("rollout percentage %d is outside [0,100]", *flag.RolloutPercentage))
	}
	for i := range flag.Conditions {
		c := &flag.Conditions[i]
		if c.Attribute == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("condition %d is missing an attribute", i))
		}
		if c.Operator == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("condition %d is missing an operator", i))
		}
		if c.Value == nil {
			report.Errors = append(report.Errors, fmt.Sprintf("condition %d is missing a value", i))
		}
	}

	if flag.Kind.IsValid() && !flag.DefaultValue.IsZero() && flag.DefaultValue.KindOf() != flag.Kind {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"default value is %s but flag type is %s", flag.DefaultValue.KindOf(), flag.Kind))
	}
	if flag.RolloutPercentage != nil && *flag.RolloutPercentage > 50 {
		lower := strings.ToLower(flag.Key)
		matches := make([]bool, len(riskyKeyMarkers))
		for i, marker := range riskyKeyMarkers {
			matches[i] = strings.Contains(lower, marker)
		}
		if utils.Any(matches) {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"key suggests an autonomous capability; rollout above 50%% (%d%%) deserves review", *flag.RolloutPercentage))
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}
