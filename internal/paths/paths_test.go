package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withPlatform swaps the platform lookups for the duration of a test.
func withPlatform(t *testing.T, goos, home, userConfig string) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })

	platformDir.goos = goos
	platformDir.homeDir = func() (string, error) { return home, nil }
	platformDir.userConfigDir = func() (string, error) { return userConfig, nil }
}

func TestDefaultDirs_Linux(t *testing.T) {
	withPlatform(t, "linux", "/home/ada", "/unused")

	t.Run("XDG variables win", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/storytree", got)

		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/storytree", got)
	})

	t.Run("home fallbacks", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")

		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/ada", ".config", "storytree"), got)

		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/home/ada", ".local", "share", "storytree"), got)
	})
}

func TestDefaultDirs_OtherPlatforms(t *testing.T) {
	withPlatform(t, "darwin", "/Users/ada", "/Users/ada/Library/Application Support")

	cfg, err := DefaultConfigDir()
	require.NoError(t, err)
	data, err := DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/Users/ada/Library/Application Support", "storytree"), cfg)
	assert.Equal(t, cfg, data)
}

func TestDefaultDirs_LookupError(t *testing.T) {
	withPlatform(t, "linux", "", "")
	platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	assert.Error(t, err)
}

func TestResolveConfigDir(t *testing.T) {
	withPlatform(t, "linux", "/home/ada", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name   string
		flag   string
		envVal string
		want   string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env wins when flag empty", "", "/env/config", "/env/config"},
		{"platform default when both empty", "", "", "/home/ada/.config/storytree"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	withPlatform(t, "linux", "/home/ada", "")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		name        string
		flag        string
		configValue string
		envVal      string
		want        string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config.yaml wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env wins when flag and config empty", "", "", "/env/data", "/env/data"},
		{"platform default when all empty", "", "", "", "/home/ada/.local/share/storytree"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.envVal)
			got, err := ResolveDataDir(tt.flag, tt.configValue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_RelativeBecomesAbsolute(t *testing.T) {
	t.Setenv(EnvConfigDir, "relative/env")
	got, err := ResolveConfigDir("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)

	t.Setenv(EnvDataDir, "")
	got, err = ResolveDataDir("", "relative/config")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)
}

func TestFiles(t *testing.T) {
	assert.Equal(t, filepath.Join("/cfg", "config.yaml"), ConfigFile("/cfg"))
	assert.Equal(t, filepath.Join("/cfg", ".env"), EnvFile("/cfg"))
}
