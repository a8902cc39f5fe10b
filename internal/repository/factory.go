// Package repository selects and memoizes the storage backend. The Factory
// returns a remote store when the configuration asks for one and carries the
// credentials to reach it, and falls back to the local store otherwise.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mesh-intelligence/storytree/internal/local"
	"github.com/mesh-intelligence/storytree/internal/remote"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Factory builds types.Store instances and memoizes the last one. A Factory
// is safe for concurrent use; the zero value is not usable, call New.
type Factory struct {
	// Dialers maps remote provider names to client constructors. Replace
	// entries before the first Store call to stub out the network.
	Dialers map[string]remote.Dialer

	logger *slog.Logger

	mu    sync.Mutex
	cfg   types.Config
	store types.Store
}

// New returns a Factory using the default remote dialers. A nil logger
// discards logs.
func New(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{
		Dialers: remote.DefaultDialers(),
		logger:  logger,
	}
}

// Store returns the store for cfg. While cfg equals the configuration of the
// previous call the same instance is returned. Any difference closes the
// previous instance and builds a new one.
//
// Remote unavailability is never returned: it is logged and the local store
// is used instead. Errors come only from an invalid cfg or a local engine
// that cannot be opened.
func (f *Factory) Store(ctx context.Context, cfg types.Config) (types.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store != nil && f.cfg == cfg {
		return f.store, nil
	}

	if f.store != nil {
		if err := f.store.Close(); err != nil {
			f.logger.Warn("closing previous store", "backend", f.store.Kind(), "error", err)
		}
		f.store = nil
	}

	store, err := f.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.cfg = cfg
	f.store = store
	return store, nil
}

// Close closes the memoized store, if any. The next Store call rebuilds.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		return nil
	}
	err := f.store.Close()
	f.store = nil
	f.cfg = types.Config{}
	return err
}

func (f *Factory) build(ctx context.Context, cfg types.Config) (types.Store, error) {
	if cfg.Backend == types.BackendRemote {
		store, err := f.dialRemote(ctx, cfg.Remote)
		if err == nil {
			return store, nil
		}
		f.logger.Warn("remote backend unavailable, falling back to local",
			"provider", cfg.Remote.ProviderName(), "error", err)
	}

	store, err := local.Open(cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("open local backend: %w", err)
	}
	return store, nil
}

// dialRemote connects the configured provider. Every failure wraps
// types.ErrBackendUnavailable. No dialer runs unless the credential and
// project ID are both present.
func (f *Factory) dialRemote(ctx context.Context, rc types.RemoteConfig) (types.Store, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	dial, ok := f.Dialers[rc.ProviderName()]
	if !ok {
		return nil, fmt.Errorf("%w: no dialer for provider %q", types.ErrBackendUnavailable, rc.ProviderName())
	}
	client, err := dial(ctx, rc, f.logger)
	if err != nil {
		if errors.Is(err, types.ErrBackendUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrBackendUnavailable, err)
	}
	return remote.NewStore(client, f.logger), nil
}
