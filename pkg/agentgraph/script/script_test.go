package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SingleOps(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		input  string
		want   string
	}{
		{"upper", "upper", "hello", "HELLO"},
		{"lower", "lower", "HeLLo", "hello"},
		{"trim", "trim", "  spaced  ", "spaced"},
		{"reverse", "reverse", "abc", "cba"},
		{"reverse unicode", "reverse", "héllo", "olléh"},
		{"prefix", "prefix:>> ", "msg", ">> msg"},
		{"suffix", "suffix:!", "msg", "msg!"},
		{"replace", "replace:cat:dog", "cat and cat", "dog and dog"},
		{"truncate", "truncate:3", "abcdef", "abc"},
		{"truncate short input", "truncate:10", "abc", "abc"},
		{"template", "template:[${input}] (${length})", "ab", "[ab] (2)"},
		{"template unknown var kept", "template:${nope}-${input}", "x", "${nope}-x"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Run(tc.source, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRun_Pipeline(t *testing.T) {
	got, err := Run("trim | upper | prefix:RE: ", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "RE: HELLO", got)
}

func TestRun_MultilineWithComments(t *testing.T) {
	source := `# normalize
trim
lower

# decorate
suffix:.`
	got, err := Run(source, "  SHOUTING  ")
	require.NoError(t, err)
	assert.Equal(t, "shouting.", got)
}

func TestRun_Require(t *testing.T) {
	got, err := Run("require:hello | upper", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD", got)

	_, err = Run("require:absent", "hello world")
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "require:absent", runErr.Step)
}

func TestRun_Assert(t *testing.T) {
	testCases := []struct {
		name string
		expr string
		in   string
		ok   bool
	}{
		{"length comparison", "assert:length > 3", "hello", true},
		{"length too short", "assert:length > 3", "ab", false},
		{"equality", "assert:input == hello", "hello", true},
		{"inequality", "assert:input != goodbye", "hello", true},
		{"contains", "assert:input contains ell", "hello", true},
		{"negation", "assert:not input contains zzz", "hello", true},
		{"conjunction", "assert:length >= 1 and input contains h", "hello", true},
		{"disjunction false", "assert:length > 100 or input contains zzz", "hello", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(tc.expr, tc.in)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				var runErr *RunError
				assert.ErrorAs(t, err, &runErr)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		line   int
	}{
		{"unknown op", "upper\nexplode", 2},
		{"upper with arg", "upper:loud", 1},
		{"prefix without arg", "prefix", 1},
		{"replace missing new", "replace:old", 1},
		{"truncate non-numeric", "truncate:many", 1},
		{"truncate negative", "truncate:-1", 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.source)
			require.Error(t, err)

			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tc.line, compileErr.Line)
		})
	}
}

func TestCompile_EmptyScript(t *testing.T) {
	for _, source := range []string{"", "   ", "# only a comment\n\n"} {
		_, err := Compile(source)
		assert.Error(t, err, "source %q", source)
	}
}

func TestProgram_Reusable(t *testing.T) {
	p, err := Compile("upper")
	require.NoError(t, err)

	for _, in := range []string{"a", "b", "c"} {
		got, err := p.Run(in)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(got))
	}
}

func TestEval(t *testing.T) {
	vars := map[string]any{"input": "hello", "length": 5}

	testCases := []struct {
		expr string
		want bool
	}{
		{"length == 5", true},
		{"length >= 5", true},
		{"length < 5", false},
		{"input == hello", true},
		{"input == 'hello'", true},
		{`input == "hello"`, true},
		{"input contains ell", true},
		{"!input contains z", true},
		{"input", true},
		{"false", false},
		{"", false},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Eval(tc.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExpand(t *testing.T) {
	vars := map[string]any{"name": "ada", "n": 3}

	assert.Equal(t, "hi ada (3)", Expand("hi ${name} (${n})", vars))
	assert.Equal(t, "${missing}", Expand("${missing}", vars))
	assert.Equal(t, "", Expand("", vars))
	assert.Equal(t, "plain", Expand("plain", vars))
}
