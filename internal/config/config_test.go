package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storytree/internal/paths"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	f, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), f)
	assert.Equal(t, slog.LevelInfo, f.SlogLevel())
}

func TestLoad_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, paths.ConfigFile(dir), `
backend: remote
engine: badger
data_dir: /var/lib/storytree
remote:
  provider: gcs
  project_id: acme
  bucket: acme-trees
generator:
  model: gpt-4o
  count: 5
  length: long
log_level: debug
`)

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendRemote, f.Backend)
	assert.Equal(t, types.EngineBadger, f.Engine)
	assert.Equal(t, types.RemoteConfig{Provider: types.ProviderGCS, ProjectID: "acme", Bucket: "acme-trees"}, f.Remote)
	assert.Equal(t, "gpt-4o", f.Generator.Model)
	assert.Equal(t, 5, f.Generator.Count)
	assert.Equal(t, "long", f.Generator.Length)
	assert.Equal(t, slog.LevelDebug, f.SlogLevel())

	cfg := f.Store("/data")
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, f.Remote, cfg.Remote)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, paths.ConfigFile(dir), "backend: local\n")
	t.Setenv("STORYTREE_BACKEND", "remote")
	t.Setenv("STORYTREE_REMOTE_CREDENTIAL", "s3cret")
	t.Setenv("STORYTREE_GENERATOR_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendRemote, f.Backend)
	assert.Equal(t, "s3cret", f.Remote.Credential)
	assert.Equal(t, "sk-fallback", f.Generator.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "STORYTREE_REMOTE_PROJECT_ID"
	_, preset := os.LookupEnv(key)
	require.False(t, preset, "test needs %s unset", key)
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	writeFile(t, paths.EnvFile(dir), key+"=from-dotenv\n")

	f, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", f.Remote.ProjectID)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"log level", "log_level: chatty\n"},
		{"answer count", "generator:\n  count: 0\n"},
		{"answer count above limit", "generator:\n  count: 11\n"},
		{"length", "generator:\n  length: epic\n"},
		{"backend", "backend: firebase\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, paths.ConfigFile(dir), tt.yaml)
			_, err := Load(dir)
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, paths.ConfigFile(dir), "backend: [unterminated\n")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestWriteIfMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := filepath.Join(t.TempDir(), "nested")

	f := Default()
	f.Remote.Credential = "never-written"
	written, err := WriteIfMissing(dir, f)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(paths.ConfigFile(dir))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)

	written, err = WriteIfMissing(dir, Default())
	require.NoError(t, err)
	assert.False(t, written, "existing file is kept")
}
