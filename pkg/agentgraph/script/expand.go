package script

import (
	"fmt"
	"regexp"
)

// bracePattern matches ${varname}; names are alphanumeric plus underscore.
var bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Expand substitutes ${var} placeholders in s from vars. Unknown variables
// are kept as-is so partially templated text survives unchanged.
func Expand(s string, vars map[string]any) string {
	if s == "" {
		return ""
	}
	return bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		return match
	})
}
