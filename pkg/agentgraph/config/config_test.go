package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilMap(t *testing.T) {
	cfg := New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.False(t, cfg.Has("anything"))
}

func TestString(t *testing.T) {
	cfg := New(map[string]any{"model": "openai/gpt-4o", "count": 3})

	assert.Equal(t, "openai/gpt-4o", cfg.String("model", "fallback"))
	assert.Equal(t, "fallback", cfg.String("missing", "fallback"))
	assert.Equal(t, "fallback", cfg.String("count", "fallback")) // wrong type
}

func TestBool(t *testing.T) {
	cfg := New(map[string]any{"enabled": true, "name": "x"})

	assert.True(t, cfg.Bool("enabled", false))
	assert.True(t, cfg.Bool("missing", true))
	assert.False(t, cfg.Bool("name", false))
}

func TestInt(t *testing.T) {
	cfg := New(map[string]any{
		"int":      42,
		"int64":    int64(43),
		"json":     float64(44), // how JSON decoding hands back integers
		"frac":     44.5,
		"notanint": "5",
	})

	assert.Equal(t, 42, cfg.Int("int", 0))
	assert.Equal(t, 43, cfg.Int("int64", 0))
	assert.Equal(t, 44, cfg.Int("json", 0))
	assert.Equal(t, 9, cfg.Int("frac", 9)) // fractional floats don't convert
	assert.Equal(t, 9, cfg.Int("notanint", 9))
	assert.Equal(t, 9, cfg.Int("missing", 9))
}

func TestFloat(t *testing.T) {
	cfg := New(map[string]any{"temp": 0.7, "n": 2})

	assert.InDelta(t, 0.7, cfg.Float("temp", 0), 1e-9)
	assert.InDelta(t, 2.0, cfg.Float("n", 0), 1e-9)
	assert.InDelta(t, 1.5, cfg.Float("missing", 1.5), 1e-9)
}

func TestDuration(t *testing.T) {
	cfg := New(map[string]any{
		"str":     "90s",
		"seconds": 30,
		"float":   1.5,
		"bad":     "ninety",
	})

	assert.Equal(t, 90*time.Second, cfg.Duration("str", 0))
	assert.Equal(t, 30*time.Second, cfg.Duration("seconds", 0))
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration("float", 0))
	assert.Equal(t, time.Minute, cfg.Duration("bad", time.Minute))
	assert.Equal(t, time.Minute, cfg.Duration("missing", time.Minute))
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("addr: \":9090\"\ndb_path: data.db\ntimeout: 45s\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.String("addr", ""))
	assert.Equal(t, "data.db", cfg.String("db_path", ""))
	assert.Equal(t, 45*time.Second, cfg.Duration("timeout", 0))
}

func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte(":\n  - ]["))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"addr": ":8081", "max_runs": 10}`))
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.String("addr", ""))
	assert.Equal(t, 10, cfg.Int("max_runs", 0))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("addr: \":1234\"\n"), 0o644))

	cfg, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.String("addr", ""))

	jsonPath := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"addr": ":5678"}`), 0o644))

	cfg, err = FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, ":5678", cfg.String("addr", ""))

	t.Run("unsupported extension", func(t *testing.T) {
		tomlPath := filepath.Join(dir, "conf.toml")
		require.NoError(t, os.WriteFile(tomlPath, []byte("addr = 1"), 0o644))
		_, err := FromFile(tomlPath)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
