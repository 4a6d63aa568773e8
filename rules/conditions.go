package rules

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// resolveField resolves a dot-path against the event, the context, or a
// combined view. Paths prefixed "event." or "context." are rooted
// explicitly; bare paths consult the event first, then the context.
func resolveField(field string, ev Event, rctx Context) (any, bool) {
	switch {
	case strings.HasPrefix(field, "event."):
		return traverse(ev.AsMap(), strings.TrimPrefix(field, "event."))
	case strings.HasPrefix(field, "context."):
		return traverse(map[string]any(rctx), strings.TrimPrefix(field, "context."))
	default:
		if v, ok := traverse(ev.AsMap(), field); ok {
			return v, true
		}
		return traverse(map[string]any(rctx), field)
	}
}

// traverse walks a dot-path through nested string-keyed maps.
func traverse(root map[string]any, path string) (any, bool) {
	var current any = root
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// evaluateConditions applies all of a rule's conditions with logical AND,
// short-circuiting left to right. An empty condition list always matches.
func evaluateConditions(conds []Condition, ev Event, rctx Context) (bool, error) {
	for _, cond := range conds {
		ok, err := evaluateCondition(cond, ev, rctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evaluateCondition applies a single condition's operator to the resolved
// field value.
func evaluateCondition(cond Condition, ev Event, rctx Context) (bool, error) {
	value, present := resolveField(cond.Field, ev, rctx)

	switch cond.Operator {
	case OpExists:
		return present, nil
	case OpNotExists:
		return !present, nil
	}

	if !present {
		return false, nil
	}

	switch cond.Operator {
	case OpEquals:
		return looseEqual(value, cond.Value), nil

	case OpNotEquals:
		return !looseEqual(value, cond.Value), nil

	case OpContains:
		return strings.Contains(asString(value), asString(cond.Value)), nil

	case OpNotContains:
		return !strings.Contains(asString(value), asString(cond.Value)), nil

	case OpHasPrefix:
		return strings.HasPrefix(asString(value), asString(cond.Value)), nil

	case OpHasSuffix:
		return strings.HasSuffix(asString(value), asString(cond.Value)), nil

	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		left, lok := asFloat(value)
		right, rok := asFloat(cond.Value)
		if !lok || !rok {
			return false, nil
		}
		switch cond.Operator {
		case OpGreaterThan:
			return left > right, nil
		case OpGreaterOrEqual:
			return left >= right, nil
		case OpLessThan:
			return left < right, nil
		default:
			return left <= right, nil
		}

	case OpIn:
		return inSet(value, cond.Value), nil

	case OpNotIn:
		return !inSet(value, cond.Value), nil

	case OpMatches:
		pattern, ok := cond.Value.(string)
		if !ok {
			return false, fmt.Errorf("rules: matches operator requires a string pattern, got %T", cond.Value)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("rules: invalid pattern %q: %w", pattern, err)
		}
		return re.MatchString(asString(value)), nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
	}
}

// looseEqual compares values, coercing both sides to float64 when either
// side is numeric so that 5, 5.0 and "5" compare equal.
func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b) || asString(a) == asString(b)
}

// inSet reports whether value appears in the slice operand.
func inSet(value, set any) bool {
	rv := reflect.ValueOf(set)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(value, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// asFloat coerces numeric values and numeric strings to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asString renders a value for substring and prefix comparisons.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// fieldPattern matches {{field}} placeholders in action templates.
var fieldPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// interpolate replaces {{field}} placeholders with values resolved
// against the event and context. Unresolvable fields render empty.
func interpolate(template string, ev Event, rctx Context) string {
	return fieldPattern.ReplaceAllStringFunc(template, func(match string) string {
		field := strings.TrimSpace(fieldPattern.FindStringSubmatch(match)[1])
		value, ok := resolveField(field, ev, rctx)
		if !ok {
			return ""
		}
		return asString(value)
	})
}
