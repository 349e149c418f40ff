package conditions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/ohler55/ojg/jp"
	"golang.org/x/exp/slices"

	"github.com/togglekit/togglekit-go/flagengine/evalcontext"
)

// Matches determines whether the given evaluation context satisfies the
// condition. It is a pure function: unknown attributes, unknown operators
// and unresolvable context values all evaluate to false (fail-closed).
func Matches(c *Condition, ctx *evalcontext.Context) bool {
	contextValue := resolveAttribute(c, ctx)
	if contextValue == nil {
		return false
	}

	switch c.Operator {
	case In:
		return matchIn(toString(contextValue), c.Value)
	case NotIn:
		list, ok := asList(c.Value)
		if !ok {
			return false
		}
		return !slices.Contains(list, toString(contextValue))
	}

	if c.Attribute == SystemVersion {
		if matched, handled := matchSemver(c.Operator, toString(contextValue), toString(c.Value)); handled {
			return matched
		}
	}

	return match(c.Operator, toString(contextValue), toString(c.Value))
}

// resolveAttribute looks up the context value the condition compares
// against. Empty context fields resolve to nil so conditions on unset
// attributes fail closed.
func resolveAttribute(c *Condition, ctx *evalcontext.Context) any {
	switch c.Attribute {
	case UserID:
		return nonEmpty(ctx.UserID)
	case Environment:
		return nonEmpty(ctx.Environment)
	case PluginCategory:
		return nonEmpty(ctx.PluginCategory)
	case SystemVersion:
		return nonEmpty(ctx.SystemVersion)
	case Custom:
		return resolveCustom(c.Property, ctx)
	}
	return nil
}

func resolveCustom(property string, ctx *evalcontext.Context) any {
	if property == "" {
		return nil
	}
	if strings.HasPrefix(property, "$.") {
		return getContextValueGetter(property)(ctx)
	}
	if ctx.Custom != nil {
		if value, exists := ctx.Custom[property]; exists {
			return value
		}
	}
	return nil
}

// getContextValueGetter returns a function retrieving a value from the
// evaluation context via a JSONPath expression, or a nil getter when the
// property is not a valid JSONPath.
func getContextValueGetter(property string) func(ctx *evalcontext.Context) any {
	p, err := jp.ParseString(property)
	if err == nil {
		return func(ctx *evalcontext.Context) any {
			results := p.Get(ctx.AsMap())
			if len(results) > 0 {
				return results[0]
			}
			return nil
		}
	}
	return func(ctx *evalcontext.Context) any {
		return nil
	}
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return fmt.Sprint(value)
}

// asList coerces the condition literal for In/NotIn into a string slice.
// Accepts a JSON list of scalars or a comma-separated string.
func asList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = toString(item)
		}
		return out, true
	case string:
		return strings.Split(v, ","), true
	}
	return nil, false
}

func matchIn(contextValue string, conditionValue any) bool {
	list, ok := asList(conditionValue)
	if !ok {
		return false
	}
	return slices.Contains(list, contextValue)
}

// match compares two stringified values, trying bool, integer and float
// interpretations before falling back to a semver-tagged or plain string
// comparison.
func match(c Operator, contextValue, conditionValue string) bool {
	b1, e1 := strconv.ParseBool(contextValue)
	b2, e2 := strconv.ParseBool(conditionValue)
	if e1 == nil && e2 == nil {
		return matchBool(c, b1, b2)
	}

	i1, e1 := strconv.ParseInt(contextValue, 10, 64)
	i2, e2 := strconv.ParseInt(conditionValue, 10, 64)
	if e1 == nil && e2 == nil {
		return matchInt(c, i1, i2)
	}

	f1, e1 := strconv.ParseFloat(contextValue, 64)
	f2, e2 := strconv.ParseFloat(conditionValue, 64)
	if e1 == nil && e2 == nil {
		return matchFloat(c, f1, f2)
	}

	if strings.HasSuffix(conditionValue, ":semver") {
		if matched, handled := matchSemver(c, contextValue, conditionValue[:len(conditionValue)-7]); handled {
			return matched
		}
		return false
	}

	return matchString(c, contextValue, conditionValue)
}

// matchSemver compares two versions semantically. The second return value
// reports whether both sides parsed as semver; when false the caller falls
// back to the generic cascade.
func matchSemver(c Operator, contextValue, conditionValue string) (bool, bool) {
	conditionVersion, err := semver.ParseTolerant(conditionValue)
	if err != nil {
		return false, false
	}
	contextVersion, err := semver.ParseTolerant(contextValue)
	if err != nil {
		return false, false
	}
	switch c {
	case Equal:
		return contextVersion.EQ(conditionVersion), true
	case NotEqual:
		return contextVersion.NE(conditionVersion), true
	case GreaterThan:
		return contextVersion.GT(conditionVersion), true
	case LessThan:
		return contextVersion.LT(conditionVersion), true
	}
	return false, true
}

func matchBool(c Operator, v1, v2 bool) bool {
	var i1, i2 int64
	if v1 {
		i1 = 1
	}
	if v2 {
		i2 = 1
	}
	return matchInt(c, i1, i2)
}

func matchInt(c Operator, v1, v2 int64) bool {
	switch c {
	case Equal:
		return v1 == v2
	case NotEqual:
		return v1 != v2
	case GreaterThan:
		return v1 > v2
	case LessThan:
		return v1 < v2
	}
	return false
}

func matchFloat(c Operator, v1, v2 float64) bool {
	switch c {
	case Equal:
		return v1 == v2
	case NotEqual:
		return v1 != v2
	case GreaterThan:
		return v1 > v2
	case LessThan:
		return v1 < v2
	}
	return false
}

func matchString(c Operator, v1, v2 string) bool {
	switch c {
	case Equal:
		return v1 == v2
	case NotEqual:
		return v1 != v2
	case Contains:
		return strings.Contains(v1, v2)
	case GreaterThan:
		return v1 > v2
	case LessThan:
		return v1 < v2
	}
	return false
}
