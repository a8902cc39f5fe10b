package types

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds backend selection and parameters for the repository factory.
// Config is comparable; the factory reuses its last store while the Config
// stays equal field for field.
type Config struct {
	Backend string       `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir string       `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Engine  string       `json:"engine" yaml:"engine" mapstructure:"engine"`
	Remote  RemoteConfig `json:"remote" yaml:"remote" mapstructure:"remote"`
}

// RemoteConfig holds the connection parameters of the remote document
// backend. Credential and ProjectID are both required to connect.
type RemoteConfig struct {
	Provider   string `json:"provider" yaml:"provider" mapstructure:"provider"`
	URL        string `json:"url" yaml:"url,omitempty" mapstructure:"url"`
	Credential string `json:"credential" yaml:"credential,omitempty" mapstructure:"credential"`
	ProjectID  string `json:"project_id" yaml:"project_id,omitempty" mapstructure:"project_id"`
	Bucket     string `json:"bucket" yaml:"bucket,omitempty" mapstructure:"bucket"`
}

// Supported backend names.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Supported local key-value engines.
const (
	EngineSQLite = "sqlite"
	EngineBadger = "badger"
)

// Supported remote document providers.
const (
	ProviderPostgres = "postgres"
	ProviderGCS      = "gcs"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrEngineUnknown  = errors.New("unknown local engine")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendLocal:  true,
	BackendRemote: true,
}

// knownEngines lists the local engines that Validate accepts. Empty selects
// the default engine.
var knownEngines = map[string]bool{
	"":           true,
	EngineSQLite: true,
	EngineBadger: true,
}

// Validate checks that the Config is well-formed. It does not check remote
// connection parameters: an incomplete remote section is a fallback
// condition, not a configuration error.
func (c Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrBackendEmpty)
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrBackendUnknown, c.Backend)
	}
	if !knownEngines[c.Engine] {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrEngineUnknown, c.Engine)
	}
	return nil
}

// LocalEngine returns the configured engine, defaulting to SQLite.
func (c Config) LocalEngine() string {
	if c.Engine == "" {
		return EngineSQLite
	}
	return c.Engine
}

// Validate checks that the remote section carries everything needed to
// connect. Failures wrap ErrBackendUnavailable.
func (r RemoteConfig) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.In(ProviderPostgres, ProviderGCS)),
		validation.Field(&r.Credential, validation.Required),
		validation.Field(&r.ProjectID, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// ProviderName returns the configured provider, defaulting to Postgres.
func (r RemoteConfig) ProviderName() string {
	if r.Provider == "" {
		return ProviderPostgres
	}
	return r.Provider
}
