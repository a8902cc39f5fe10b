// Package config loads storytree settings from config.yaml, a .env file,
// and STORYTREE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/storytree/internal/generate"
	"github.com/mesh-intelligence/storytree/internal/paths"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. STORYTREE_BACKEND or
// STORYTREE_REMOTE_CREDENTIAL.
const EnvPrefix = "STORYTREE"

// Log levels accepted in log_level.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Generator holds the content-generation settings.
type Generator struct {
	generate.OpenAIConfig `yaml:",inline" mapstructure:",squash"`

	Count    int    `yaml:"count" mapstructure:"count"`
	Length   string `yaml:"length" mapstructure:"length"`
	Language string `yaml:"language" mapstructure:"language"`
}

// File is the shape of config.yaml.
type File struct {
	Backend   string             `yaml:"backend" mapstructure:"backend"`
	Engine    string             `yaml:"engine,omitempty" mapstructure:"engine"`
	DataDir   string             `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	Remote    types.RemoteConfig `yaml:"remote" mapstructure:"remote"`
	Generator Generator          `yaml:"generator" mapstructure:"generator"`
	LogLevel  string             `yaml:"log_level" mapstructure:"log_level"`
}

// Default returns the settings written by init.
func Default() File {
	return File{
		Backend: types.BackendLocal,
		Engine:  types.EngineSQLite,
		Remote:  types.RemoteConfig{Provider: types.ProviderPostgres},
		Generator: Generator{
			OpenAIConfig: generate.OpenAIConfig{Model: generate.DefaultModel},
			Count:        3,
			Length:       string(generate.LengthMedium),
			Language:     "en",
		},
		LogLevel: LevelInfo,
	}
}

// Validate checks the settings that have a closed set of values. Remote
// credentials are not checked here; missing ones trigger local fallback.
func (f File) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.LogLevel, validation.In(LevelDebug, LevelInfo, LevelWarn, LevelError)),
	)
	if err == nil {
		err = validation.ValidateStruct(&f.Generator,
			validation.Field(&f.Generator.Count, validation.Required, validation.Min(1), validation.Max(10)),
			validation.Field(&f.Generator.Length, validation.In(
				string(generate.LengthShort), string(generate.LengthMedium), string(generate.LengthLong))),
		)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}
	return f.Store("").Validate()
}

// Store returns the repository configuration with dataDir resolved.
func (f File) Store(dataDir string) types.Config {
	return types.Config{
		Backend: f.Backend,
		DataDir: dataDir,
		Engine:  f.Engine,
		Remote:  f.Remote,
	}
}

// SlogLevel maps LogLevel to a slog level.
func (f File) SlogLevel() slog.Level {
	switch f.LogLevel {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the .env file and config.yaml from configDir, applies
// environment overrides, and validates the result. Missing files are not
// errors. Variables already set in the environment win over .env entries.
func Load(configDir string) (File, error) {
	if err := godotenv.Load(paths.EnvFile(configDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return File{}, fmt.Errorf("load %s: %w", paths.EnvFile(configDir), err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return File{}, fmt.Errorf("read config: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, fmt.Errorf("decode config: %w", err)
	}
	if f.Generator.APIKey == "" {
		f.Generator.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper, d File) {
	v.SetDefault("backend", d.Backend)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("remote.provider", d.Remote.Provider)
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.credential", d.Remote.Credential)
	v.SetDefault("remote.project_id", d.Remote.ProjectID)
	v.SetDefault("remote.bucket", d.Remote.Bucket)
	v.SetDefault("generator.api_key", d.Generator.APIKey)
	v.SetDefault("generator.model", d.Generator.Model)
	v.SetDefault("generator.base_url", d.Generator.BaseURL)
	v.SetDefault("generator.count", d.Generator.Count)
	v.SetDefault("generator.length", d.Generator.Length)
	v.SetDefault("generator.language", d.Generator.Language)
	v.SetDefault("log_level", d.LogLevel)
}

// WriteIfMissing writes f to config.yaml in configDir unless the file
// exists. Secrets are never written; they belong in .env. It reports whether
// a file was written.
func WriteIfMissing(configDir string, f File) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	f.Remote.Credential = ""
	f.Generator.APIKey = ""
	data, err := yaml.Marshal(&f)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# storytree configuration. Put credentials in .env next to this file:\n" +
		"#   STORYTREE_REMOTE_CREDENTIAL=...\n#   STORYTREE_GENERATOR_API_KEY=...\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
