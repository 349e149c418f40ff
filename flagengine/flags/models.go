package flags

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/itlightning/dateparse"

	"github.com/togglekit/togglekit-go/flagengine/conditions"
)

// Kind is the declared value type of a flag.
type Kind string

const (
	Boolean Kind = "boolean"
	String  Kind = "string"
	Number  Kind = "number"
	JSON    Kind = "json"
)

// Kinds lists the recognized flag kinds.
var Kinds = []Kind{Boolean, String, Number, JSON}

// IsValid reports whether k is one of the recognized kinds.
func (k Kind) IsValid() bool {
	switch k {
	case Boolean, String, Number, JSON:
		return true
	}
	return false
}

// Value is a tagged variant over the four supported flag value kinds. At
// most one field is set; a Value with no field set serializes as null.
type Value struct {
	Bool *bool
	Str  *string
	Num  *float64
	Raw  json.RawMessage
}

func NewBool(v bool) Value      { return Value{Bool: &v} }
func NewString(v string) Value  { return Value{Str: &v} }
func NewNumber(v float64) Value { return Value{Num: &v} }
func NewJSON(raw json.RawMessage) Value {
	return Value{Raw: raw}
}

// ZeroOf returns the "off" value for a kind: false, "", 0 or null.
func ZeroOf(kind Kind) Value {
	switch kind {
	case Boolean:
		return NewBool(false)
	case String:
		return NewString("")
	case Number:
		return NewNumber(0)
	case JSON:
		return NewJSON(json.RawMessage("null"))
	}
	return Value{}
}

// AsBool returns the boolean interpretation of the value. Only a Value
// holding true is truthy; every other shape is false.
func (v Value) AsBool() bool {
	return v.Bool != nil && *v.Bool
}

// IsZero reports whether no variant field is set.
func (v Value) IsZero() bool {
	return v.Bool == nil && v.Str == nil && v.Num == nil && v.Raw == nil
}

// KindOf returns the kind the active variant corresponds to, or "" for an
// unset value.
func (v Value) KindOf() Kind {
	switch {
	case v.Bool != nil:
		return Boolean
	case v.Str != nil:
		return String
	case v.Num != nil:
		return Number
	case v.Raw != nil:
		return JSON
	}
	return ""
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(other Value) bool {
	if v.KindOf() != other.KindOf() {
		return false
	}
	switch v.KindOf() {
	case Boolean:
		return *v.Bool == *other.Bool
	case String:
		return *v.Str == *other.Str
	case Number:
		return *v.Num == *other.Num
	case JSON:
		return string(v.Raw) == string(other.Raw)
	}
	return true
}

func (v Value) String() string {
	switch {
	case v.Bool != nil:
		return strconv.FormatBool(*v.Bool)
	case v.Str != nil:
		return *v.Str
	case v.Num != nil:
		return strconv.FormatFloat(*v.Num, 'f', -1, 64)
	case v.Raw != nil:
		return string(v.Raw)
	}
	return "null"
}

// MarshalJSON emits the plain JSON value of the active variant.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Bool != nil:
		return json.Marshal(*v.Bool)
	case v.Str != nil:
		return json.Marshal(*v.Str)
	case v.Num != nil:
		return json.Marshal(*v.Num)
	case v.Raw != nil:
		return v.Raw, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a plain JSON value and selects the matching
// variant: bool, number, string, or raw JSON for objects and arrays.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Value{}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		v.Bool = &b
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		v.Num = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Str = &s
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("unable to unmarshal flag value: invalid JSON")
	}
	v.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Percentage returns a pointer to n, for setting RolloutPercentage inline.
func Percentage(n int) *int {
	return &n
}

// Metadata is informational flag bookkeeping; it never affects evaluation.
type Metadata struct {
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   string    `json:"version,omitempty"`
}

// UnmarshalJSON parses metadata with tolerant timestamps, so documents
// exported by other tooling (non-RFC3339 formats) still import cleanly.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type alias struct {
		Category  string   `json:"category"`
		Tags      []string `json:"tags"`
		Owner     string   `json:"owner"`
		CreatedAt string   `json:"created_at"`
		UpdatedAt string   `json:"updated_at"`
		Version   string   `json:"version"`
	}
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Category = aux.Category
	m.Tags = aux.Tags
	m.Owner = aux.Owner
	m.Version = aux.Version
	m.CreatedAt = parseFlexibleTime(aux.CreatedAt)
	m.UpdatedAt = parseFlexibleTime(aux.UpdatedAt)
	return nil
}

func parseFlexibleTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FeatureFlag is one flag definition. Published FeatureFlag values are
// treated as immutable: updates build a new value and swap it into the
// registry, they never mutate fields in place.
type FeatureFlag struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Kind         Kind   `json:"type"`
	DefaultValue Value  `json:"default_value"`
	// Enabled is the master kill switch. When false, evaluation yields the
	// kind's off value regardless of overrides, environments or conditions.
	Enabled      bool             `json:"enabled"`
	Environments map[string]Value `json:"environments,omitempty"`
	// UserOverrides and PluginOverrides mirror the override store for
	// introspection and export; the store is the write path of record.
	UserOverrides   map[string]Value `json:"user_overrides,omitempty"`
	PluginOverrides map[string]Value `json:"plugin_overrides,omitempty"`
	// RolloutPercentage gates gradual rollout in [0,100]; only meaningful
	// for boolean flags whose current value is true. Nil means no rollout
	// gate is configured.
	RolloutPercentage *int                   `json:"rollout_percentage,omitempty"`
	Conditions        []conditions.Condition `json:"conditions,omitempty"`
	Metadata          Metadata               `json:"metadata"`
}

// Clone returns a deep copy of the flag, used for copy-on-write updates.
func (f *FeatureFlag) Clone() *FeatureFlag {
	c := *f
	c.Environments = cloneValueMap(f.Environments)
	c.UserOverrides = cloneValueMap(f.UserOverrides)
	c.PluginOverrides = cloneValueMap(f.PluginOverrides)
	if f.RolloutPercentage != nil {
		p := *f.RolloutPercentage
		c.RolloutPercentage = &p
	}
	if f.Conditions != nil {
		c.Conditions = append([]conditions.Condition(nil), f.Conditions...)
	}
	if f.Metadata.Tags != nil {
		c.Metadata.Tags = append([]string(nil), f.Metadata.Tags...)
	}
	return &c
}

func cloneValueMap(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
