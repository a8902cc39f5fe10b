// Package paths resolves where storytree keeps its configuration and data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "storytree"

// File names inside the configuration directory.
const (
	ConfigFileName = "config.yaml"
	EnvFileName    = ".env"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "STORYTREE_CONFIG_DIR"
	EnvDataDir   = "STORYTREE_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/storytree (fallback ~/.config/storytree)
// macOS:   ~/Library/Application Support/storytree
// Windows: %APPDATA%/storytree
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory. On macOS and Windows
// it is the same as the configuration directory.
//
// Linux:   $XDG_DATA_HOME/storytree (fallback ~/.local/share/storytree)
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, AppName), nil
}

// ResolveConfigDir applies the precedence flag > STORYTREE_CONFIG_DIR >
// DefaultConfigDir. Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies the precedence flag > config.yaml value >
// STORYTREE_DATA_DIR > DefaultDataDir. Explicit values are made absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return DefaultDataDir()
}

// ConfigFile returns the path of config.yaml in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// EnvFile returns the path of the .env credentials file in configDir.
func EnvFile(configDir string) string {
	return filepath.Join(configDir, EnvFileName)
}
