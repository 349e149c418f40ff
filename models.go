package togglekit

import (
	"time"

	"github.com/togglekit/togglekit-go/flagengine/evalcontext"
	"github.com/togglekit/togglekit-go/flagengine/flags"
)

// Source names the precedence stage that produced the final value of one
// evaluation.
type Source string

const (
	SourceDefault        Source = "default"
	SourceEnvironment    Source = "environment"
	SourceUserOverride   Source = "user_override"
	SourcePluginOverride Source = "plugin_override"
	SourceCondition      Source = "condition"
	SourceRollout        Source = "rollout"
)

// EvaluationResult is the outcome of one flag evaluation.
type EvaluationResult struct {
	FlagKey   string      `json:"flag_key"`
	Value     flags.Value `json:"value"`
	Reason    string      `json:"reason"`
	Source    Source      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	// Context is the resolved context the evaluation ran against,
	// including defaults filled in by the provider.
	Context evalcontext.Context `json:"context"`
	// ConditionsEvaluated counts how many conditions were checked before
	// the pipeline settled on a value.
	ConditionsEvaluated int `json:"conditions_evaluated"`
	// RolloutBucket is set only when the rollout stage computed a bucket.
	RolloutBucket *int `json:"rollout_bucket,omitempty"`
}

// Enabled reports whether the evaluation resolved to boolean true.
func (r *EvaluationResult) Enabled() bool {
	return r.Value.AsBool()
}
