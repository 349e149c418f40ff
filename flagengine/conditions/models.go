package conditions

// Attribute names the context value a condition compares against.
type Attribute string

const (
	UserID         Attribute = "user_id"
	Environment    Attribute = "environment"
	PluginCategory Attribute = "plugin_category"
	SystemVersion  Attribute = "system_version"
	Custom         Attribute = "custom"
)

// Operator is the comparison applied between the context value and the
// condition literal.
type Operator string

const (
	Equal       Operator = "equals"
	NotEqual    Operator = "not_equals"
	In          Operator = "in"
	NotIn       Operator = "not_in"
	GreaterThan Operator = "greater_than"
	LessThan    Operator = "less_than"
	Contains    Operator = "contains"
)

// Condition is a single rule gating a flag: one context attribute compared
// to a literal via a fixed operator.
type Condition struct {
	// Attribute selects the context value to compare.
	Attribute Attribute `json:"attribute"`
	// Property names the custom attribute when Attribute is Custom. A
	// "$."-prefixed property is evaluated as a JSONPath into the context.
	Property string   `json:"property,omitempty"`
	Operator Operator `json:"operator"`
	// Value is the literal to compare against. For In/NotIn it must be a
	// list, or a comma-separated string.
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}
