package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Mesh.Cells)
	assert.Equal(t, 5*time.Second, cfg.Eval.Timeout)
	assert.Equal(t, 1.0, cfg.Defaults.Blend)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
mesh:
  cells: 64
  exploded: true
eval:
  timeout: 250ms
defaults:
  softness: 0.2
log:
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Mesh.Cells)
	assert.True(t, cfg.Mesh.Exploded)
	assert.Equal(t, 0.05, cfg.Mesh.Padding, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Eval.Timeout)
	assert.Equal(t, 1.0, cfg.Defaults.Blend)
	assert.Equal(t, 0.2, cfg.Defaults.Softness)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"too few cells", "mesh: {cells: 2}", "Cells"},
		{"negative padding", "mesh: {padding: -0.1}", "Padding"},
		{"negative softness", "defaults: {softness: -1}", "Softness"},
		{"bad level", "log: {level: loud}", "Level"},
		{"bad format", "log: {format: xml}", "Format"},
		{"zero timeout", "eval: {timeout: 0s}", "Timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("mesh: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mesh:\n  cells: 32\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Mesh.Cells)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoadWithoutDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Eval.Timeout = 1500 * time.Millisecond
	cfg.Mesh.Exploded = true
	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 1.5s")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
