package script

import (
	"fmt"
	"strings"
)

// Eval evaluates a boolean condition against the provided variables.
// Supports ==, !=, <, >, <=, >=, "contains", "and", "or", and negation via
// "not " or "!". A bare value is tested for truthiness.
func Eval(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}

	if inner, ok := strings.CutPrefix(expr, "not "); ok {
		result, err := Eval(inner, vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}
	if inner, ok := strings.CutPrefix(expr, "!"); ok {
		result, err := Eval(inner, vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	if parts := strings.SplitN(expr, " and ", 2); len(parts) == 2 {
		left, err := Eval(parts[0], vars)
		if err != nil {
			return false, err
		}
		right, err := Eval(parts[1], vars)
		if err != nil {
			return false, err
		}
		return left && right, nil
	}

	if parts := strings.SplitN(expr, " or ", 2); len(parts) == 2 {
		left, err := Eval(parts[0], vars)
		if err != nil {
			return false, err
		}
		right, err := Eval(parts[1], vars)
		if err != nil {
			return false, err
		}
		return left || right, nil
	}

	// Longer operators first so ">=" is not split as ">".
	ops := []struct {
		token   string
		compare func(left, right any) bool
	}{
		{"==", func(l, r any) bool { return fmt.Sprintf("%v", l) == fmt.Sprintf("%v", r) }},
		{"!=", func(l, r any) bool { return fmt.Sprintf("%v", l) != fmt.Sprintf("%v", r) }},
		{">=", func(l, r any) bool { return toFloat64(l) >= toFloat64(r) }},
		{"<=", func(l, r any) bool { return toFloat64(l) <= toFloat64(r) }},
		{">", func(l, r any) bool { return toFloat64(l) > toFloat64(r) }},
		{"<", func(l, r any) bool { return toFloat64(l) < toFloat64(r) }},
		{" contains ", func(l, r any) bool {
			return strings.Contains(fmt.Sprintf("%v", l), fmt.Sprintf("%v", r))
		}},
	}

	for _, op := range ops {
		if parts := strings.SplitN(expr, op.token, 2); len(parts) == 2 {
			left := resolve(parts[0], vars)
			right := resolve(parts[1], vars)
			return op.compare(left, right), nil
		}
	}

	return isTruthy(resolve(expr, vars)), nil
}
