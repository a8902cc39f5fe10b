package repository

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storytree/internal/remote"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// countingDialer records how often the network would have been touched.
type countingDialer struct {
	calls  int
	client remote.DocumentClient
	err    error
}

func (d *countingDialer) dial(context.Context, types.RemoteConfig, *slog.Logger) (remote.DocumentClient, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

func newTestFactory(t *testing.T, d *countingDialer) (*Factory, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	f := New(slog.New(slog.NewTextHandler(&logs, nil)))
	f.Dialers = map[string]remote.Dialer{
		types.ProviderPostgres: d.dial,
		types.ProviderGCS:      d.dial,
	}
	t.Cleanup(func() { f.Close() })
	return f, &logs
}

func remoteConfig(dir string) types.Config {
	return types.Config{
		Backend: types.BackendRemote,
		DataDir: dir,
		Remote: types.RemoteConfig{
			Provider:   types.ProviderPostgres,
			URL:        "postgres://example/db",
			Credential: "secret",
			ProjectID:  "proj",
		},
	}
}

func TestStore_RemoteWhenCredentialsPresent(t *testing.T) {
	d := &countingDialer{client: remote.NewMemoryClient()}
	f, _ := newTestFactory(t, d)

	store, err := f.Store(context.Background(), remoteConfig(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, types.KindRemote, store.Kind())
	assert.Equal(t, 1, d.calls)
}

func TestStore_FallbackWithoutCredential(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.RemoteConfig)
	}{
		{"empty credential", func(r *types.RemoteConfig) { r.Credential = "" }},
		{"empty project", func(r *types.RemoteConfig) { r.ProjectID = "" }},
		{"unknown provider", func(r *types.RemoteConfig) { r.Provider = "dynamo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &countingDialer{client: remote.NewMemoryClient()}
			f, logs := newTestFactory(t, d)

			cfg := remoteConfig(t.TempDir())
			tt.mutate(&cfg.Remote)

			store, err := f.Store(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, types.KindLocal, store.Kind())
			assert.Zero(t, d.calls, "no network attempt")
			assert.Contains(t, logs.String(), "falling back to local")
			assert.Contains(t, logs.String(), types.ErrBackendUnavailable.Error())
		})
	}
}

func TestStore_FallbackOnDialError(t *testing.T) {
	d := &countingDialer{err: errors.New("connection refused")}
	f, logs := newTestFactory(t, d)

	store, err := f.Store(context.Background(), remoteConfig(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, types.KindLocal, store.Kind())
	assert.Equal(t, 1, d.calls)
	assert.Contains(t, logs.String(), "connection refused")
}

func TestStore_Memoized(t *testing.T) {
	d := &countingDialer{client: remote.NewMemoryClient()}
	f, _ := newTestFactory(t, d)
	ctx := context.Background()
	cfg := types.Config{Backend: types.BackendLocal, DataDir: t.TempDir()}

	first, err := f.Store(ctx, cfg)
	require.NoError(t, err)
	second, err := f.Store(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestStore_RebuiltOnConfigChange(t *testing.T) {
	d := &countingDialer{client: remote.NewMemoryClient()}
	f, _ := newTestFactory(t, d)
	ctx := context.Background()
	dir := t.TempDir()

	localStore, err := f.Store(ctx, types.Config{Backend: types.BackendLocal, DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, types.KindLocal, localStore.Kind())

	remoteStore, err := f.Store(ctx, remoteConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, types.KindRemote, remoteStore.Kind())
	assert.NotSame(t, localStore, remoteStore)

	_, err = localStore.ListTrees(ctx)
	assert.Error(t, err, "previous instance is closed")

	cfg := remoteConfig(dir)
	cfg.Remote.ProjectID = "other"
	again, err := f.Store(ctx, cfg)
	require.NoError(t, err)
	assert.NotSame(t, remoteStore, again)
	assert.Equal(t, 2, d.calls)
}

func TestStore_InvalidConfig(t *testing.T) {
	f, _ := newTestFactory(t, &countingDialer{})

	_, err := f.Store(context.Background(), types.Config{})
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
	assert.ErrorIs(t, err, types.ErrBackendEmpty)

	_, err = f.Store(context.Background(), types.Config{Backend: "firebase"})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}
