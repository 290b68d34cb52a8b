package condition

import (
	"fmt"
	"regexp"
	"strings"
)

// Evaluate recursively evaluates a ConditionGroup against ctx. Evaluation is
// pure and side-effect-free: the same (group, ctx) pair always yields the
// same bool, and it never mutates ctx. "and" short-circuits on the first
// false; "or" short-circuits on the first true. Evaluation always
// terminates for a finite group — missing fields never raise, they simply
// fail every operator except exists/not_exists.
func Evaluate(group *ConditionGroup, ctx map[string]interface{}) bool {
	if group == nil {
		return true
	}

	switch group.Logic {
	case LogicOr:
		for _, entry := range group.Conditions {
			if evaluateEntry(entry, ctx) {
				return true
			}
		}
		return false
	case LogicAnd:
		fallthrough
	default:
		for _, entry := range group.Conditions {
			if !evaluateEntry(entry, ctx) {
				return false
			}
		}
		return true
	}
}

func evaluateEntry(entry Entry, ctx map[string]interface{}) bool {
	if entry.Group != nil {
		return Evaluate(entry.Group, ctx)
	}
	if entry.Condition == nil {
		return false
	}
	return evaluateCondition(*entry.Condition, ctx)
}

func evaluateCondition(c Condition, ctx map[string]interface{}) bool {
	actual := Resolve(ctx, c.Field)

	switch c.Operator {
	case OpExists:
		return !IsUndefined(actual)
	case OpNotExists:
		return IsUndefined(actual)
	}

	// Every other operator fails on a missing field — never raises.
	if IsUndefined(actual) {
		return false
	}

	switch c.Operator {
	case OpEq:
		return looseEqual(actual, c.Value)
	case OpNeq:
		return !looseEqual(actual, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return compareNumeric(c.Operator, actual, c.Value)
	case OpContains:
		return stringContains(actual, c.Value, false)
	case OpNotContains:
		return !stringContains(actual, c.Value, false)
	case OpStartsWith:
		return stringEdge(actual, c.Value, true)
	case OpEndsWith:
		return stringEdge(actual, c.Value, false)
	case OpMatches:
		return regexMatches(actual, c.Value)
	case OpNotMatches:
		return !regexMatches(actual, c.Value)
	case OpIn:
		return membership(actual, c.Value)
	case OpNotIn:
		return !membership(actual, c.Value)
	default:
		return false
	}
}

func looseEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareNumeric(op Operator, a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpGt:
		return af > bf
	case OpGte:
		return af >= bf
	case OpLt:
		return af < bf
	case OpLte:
		return af <= bf
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func stringContains(actual, value interface{}, caseInsensitive bool) bool {
	as, aok := toString(actual)
	vs, vok := toString(value)
	if !aok || !vok {
		return false
	}
	if caseInsensitive {
		as, vs = strings.ToLower(as), strings.ToLower(vs)
	}
	return strings.Contains(as, vs)
}

func stringEdge(actual, value interface{}, prefix bool) bool {
	as, aok := toString(actual)
	vs, vok := toString(value)
	if !aok || !vok {
		return false
	}
	if prefix {
		return strings.HasPrefix(as, vs)
	}
	return strings.HasSuffix(as, vs)
}

// regexMatches compiles the pattern fresh on every call (the contract only
// requires "once per evaluation", and a single Evaluate call may visit a
// given leaf condition at most once).
func regexMatches(actual, value interface{}) bool {
	as, aok := toString(actual)
	pattern, pok := toString(value)
	if !aok || !pok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(as)
}

func membership(actual, value interface{}) bool {
	list, ok := value.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(actual, item) {
			return true
		}
	}
	return false
}
