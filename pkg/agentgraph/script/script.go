package script

import (
	"fmt"
	"strconv"
	"strings"
)

// Step names understood by the compiler.
const (
	opUpper    = "upper"
	opLower    = "lower"
	opTrim     = "trim"
	opReverse  = "reverse"
	opPrefix   = "prefix"
	opSuffix   = "suffix"
	opReplace  = "replace"
	opTruncate = "truncate"
	opTemplate = "template"
	opRequire  = "require"
	opAssert   = "assert"
)

// CompileError reports a malformed script.
type CompileError struct {
	// Line is the 1-based line number of the offending step.
	Line int
	// Step is the raw step text.
	Step string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("script line %d (%q): %v", e.Line, e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// RunError reports a step that failed at execution time.
type RunError struct {
	// Step is the step that failed.
	Step string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RunError) Unwrap() error {
	return e.Err
}

// step is one compiled operation.
type step struct {
	raw  string
	op   string
	args []string
	n    int // parsed argument for truncate
}

// Program is a compiled script, safe for concurrent use.
type Program struct {
	steps []step
}

// Compile parses source into a Program. Steps are separated by newlines or
// "|"; blank lines and lines starting with "#" are ignored.
func Compile(source string) (*Program, error) {
	var steps []step

	line := 0
	for _, rawLine := range strings.Split(source, "\n") {
		line++
		for _, rawStep := range strings.Split(rawLine, "|") {
			text := strings.TrimSpace(rawStep)
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			st, err := parseStep(text)
			if err != nil {
				return nil, &CompileError{Line: line, Step: text, Err: err}
			}
			steps = append(steps, st)
		}
	}

	if len(steps) == 0 {
		return nil, &CompileError{Line: 1, Step: "", Err: fmt.Errorf("script has no steps")}
	}

	return &Program{steps: steps}, nil
}

// parseStep validates one step's operation name and arity.
func parseStep(text string) (step, error) {
	parts := strings.SplitN(text, ":", 2)
	op := strings.TrimSpace(parts[0])
	st := step{raw: text, op: op}

	arg := ""
	if len(parts) == 2 {
		arg = parts[1]
	}

	switch op {
	case opUpper, opLower, opTrim, opReverse:
		if arg != "" {
			return st, fmt.Errorf("%s takes no argument", op)
		}
	case opPrefix, opSuffix, opTemplate, opRequire, opAssert:
		if arg == "" {
			return st, fmt.Errorf("%s requires an argument", op)
		}
		st.args = []string{arg}
	case opReplace:
		sub := strings.SplitN(arg, ":", 2)
		if len(sub) != 2 || sub[0] == "" {
			return st, fmt.Errorf("replace requires old:new arguments")
		}
		st.args = sub
	case opTruncate:
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 0 {
			return st, fmt.Errorf("truncate requires a non-negative integer")
		}
		st.n = n
	default:
		return st, fmt.Errorf("unknown operation %q", op)
	}

	return st, nil
}

// Run applies the program to input and returns the transformed text.
// require and assert steps are the only failure sources.
func (p *Program) Run(input string) (string, error) {
	current := input

	for _, st := range p.steps {
		switch st.op {
		case opUpper:
			current = strings.ToUpper(current)
		case opLower:
			current = strings.ToLower(current)
		case opTrim:
			current = strings.TrimSpace(current)
		case opReverse:
			runes := []rune(current)
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			current = string(runes)
		case opPrefix:
			current = st.args[0] + current
		case opSuffix:
			current = current + st.args[0]
		case opReplace:
			current = strings.ReplaceAll(current, st.args[0], st.args[1])
		case opTruncate:
			if len(current) > st.n {
				current = current[:st.n]
			}
		case opTemplate:
			current = Expand(st.args[0], vars(current))
		case opRequire:
			if !strings.Contains(current, st.args[0]) {
				return current, &RunError{Step: st.raw, Err: fmt.Errorf("input does not contain %q", st.args[0])}
			}
		case opAssert:
			ok, err := Eval(st.args[0], vars(current))
			if err != nil {
				return current, &RunError{Step: st.raw, Err: err}
			}
			if !ok {
				return current, &RunError{Step: st.raw, Err: fmt.Errorf("assertion failed")}
			}
		}
	}

	return current, nil
}

// Run compiles and runs source in one call.
func Run(source, input string) (string, error) {
	p, err := Compile(source)
	if err != nil {
		return "", err
	}
	return p.Run(input)
}

// vars builds the variable set visible to template and assert steps.
func vars(current string) map[string]any {
	return map[string]any{
		"input":  current,
		"length": len(current),
	}
}
