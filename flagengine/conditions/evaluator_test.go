package conditions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/togglekit/togglekit-go/flagengine/conditions"
	"github.com/togglekit/togglekit-go/flagengine/evalcontext"
)

func TestMatchesOperators(t *testing.T) {
	t.Parallel()
	ctx := &evalcontext.Context{
		UserID:         "u1",
		Environment:    "production",
		PluginCategory: "analytics",
		SystemVersion:  "2.4.1",
		Custom: map[string]any{
			"plan":     "enterprise",
			"seats":    float64(25),
			"beta_opt": true,
		},
	}

	cases := []struct {
		name     string
		cond     conditions.Condition
		expected bool
	}{
		{
			"environment equals",
			conditions.Condition{Attribute: conditions.Environment, Operator: conditions.Equal, Value: "production"},
			true,
		},
		{
			"environment equals mismatch",
			conditions.Condition{Attribute: conditions.Environment, Operator: conditions.Equal, Value: "staging"},
			false,
		},
		{
			"environment not equals",
			conditions.Condition{Attribute: conditions.Environment, Operator: conditions.NotEqual, Value: "staging"},
			true,
		},
		{
			"user id in list",
			conditions.Condition{Attribute: conditions.UserID, Operator: conditions.In, Value: []any{"u1", "u2"}},
			true,
		},
		{
			"user id in comma separated string",
			conditions.Condition{Attribute: conditions.UserID, Operator: conditions.In, Value: "u1,u2"},
			true,
		},
		{
			"user id not in list",
			conditions.Condition{Attribute: conditions.UserID, Operator: conditions.NotIn, Value: []any{"u2", "u3"}},
			true,
		},
		{
			"in requires a list",
			conditions.Condition{Attribute: conditions.UserID, Operator: conditions.In, Value: 42},
			false,
		},
		{
			"plugin category contains",
			conditions.Condition{Attribute: conditions.PluginCategory, Operator: conditions.Contains, Value: "analyt"},
			true,
		},
		{
			"custom numeric greater than",
			conditions.Condition{Attribute: conditions.Custom, Property: "seats", Operator: conditions.GreaterThan, Value: 10},
			true,
		},
		{
			"custom numeric less than fails",
			conditions.Condition{Attribute: conditions.Custom, Property: "seats", Operator: conditions.LessThan, Value: 10},
			false,
		},
		{
			"custom bool equals",
			conditions.Condition{Attribute: conditions.Custom, Property: "beta_opt", Operator: conditions.Equal, Value: true},
			true,
		},
		{
			"custom string equals",
			conditions.Condition{Attribute: conditions.Custom, Property: "plan", Operator: conditions.Equal, Value: "enterprise"},
			true,
		},
		{
			"missing custom attribute fails closed",
			conditions.Condition{Attribute: conditions.Custom, Property: "region", Operator: conditions.Equal, Value: "eu"},
			false,
		},
		{
			"unknown attribute fails closed",
			conditions.Condition{Attribute: "geo_ip", Operator: conditions.Equal, Value: "production"},
			false,
		},
		{
			"unknown operator fails closed",
			conditions.Condition{Attribute: conditions.Environment, Operator: "matches", Value: "production"},
			false,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, c.expected, conditions.Matches(&c.cond, ctx))
		})
	}
}

func TestMatchesSystemVersionSemantically(t *testing.T) {
	t.Parallel()
	ctx := &evalcontext.Context{SystemVersion: "2.10.0"}

	cases := []struct {
		name     string
		operator conditions.Operator
		value    string
		expected bool
	}{
		// Lexically "2.10.0" < "2.9.0"; semver comparison must win.
		{"greater than older version", conditions.GreaterThan, "2.9.0", true},
		{"less than newer version", conditions.LessThan, "3.0.0", true},
		{"equals own version", conditions.Equal, "2.10.0", true},
		{"not equals other version", conditions.NotEqual, "2.9.9", true},
		{"greater than newer version fails", conditions.GreaterThan, "2.11.0", false},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cond := conditions.Condition{
				Attribute: conditions.SystemVersion,
				Operator:  c.operator,
				Value:     c.value,
			}
			assert.Equal(t, c.expected, conditions.Matches(&cond, ctx))
		})
	}
}

func TestMatchesSemverSuffixOnCustomAttribute(t *testing.T) {
	t.Parallel()
	ctx := &evalcontext.Context{Custom: map[string]any{"app_version": "1.2.10"}}

	cond := conditions.Condition{
		Attribute: conditions.Custom,
		Property:  "app_version",
		Operator:  conditions.GreaterThan,
		Value:     "1.2.9:semver",
	}
	assert.True(t, conditions.Matches(&cond, ctx))
}

func TestMatchesJSONPathProperty(t *testing.T) {
	t.Parallel()
	ctx := &evalcontext.Context{
		UserID: "u1",
		Custom: map[string]any{"team": map[string]any{"tier": "gold"}},
	}

	cond := conditions.Condition{
		Attribute: conditions.Custom,
		Property:  "$.custom.team.tier",
		Operator:  conditions.Equal,
		Value:     "gold",
	}
	assert.True(t, conditions.Matches(&cond, ctx))

	cond.Value = "silver"
	assert.False(t, conditions.Matches(&cond, ctx))
}

func TestMatchesUnsetContextFieldFailsClosed(t *testing.T) {
	t.Parallel()
	cond := conditions.Condition{
		Attribute: conditions.UserID,
		Operator:  conditions.Equal,
		Value:     "",
	}
	assert.False(t, conditions.Matches(&cond, &evalcontext.Context{}))
}
