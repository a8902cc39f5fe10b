package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *MemoryClient) {
	t.Helper()
	client := NewMemoryClient()
	s := NewStore(client, nil)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, client
}

func TestStore_TreeLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	assert.Equal(t, types.KindRemote, s.Kind())

	first, err := s.CreateTree(ctx, "First")
	require.NoError(t, err)
	second, err := s.CreateTree(ctx, "Second")
	require.NoError(t, err)

	trees, err := s.ListTrees(ctx)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, second.ID, trees[0].ID)

	require.NoError(t, s.UpdateTree(ctx, first.ID, types.TreePatch{Title: types.StringPtr("Renamed")}))
	got, err := s.GetTree(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.LastModified.After(second.LastModified))

	trees, err = s.ListTrees(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, trees[0].ID)

	assert.ErrorIs(t, s.UpdateTree(ctx, "missing", types.TreePatch{}), types.ErrNotFound)
}

func TestStore_NodesDocument(t *testing.T) {
	ctx := context.Background()
	s, client := newTestStore(t)

	tree, err := s.CreateTree(ctx, "Nodes")
	require.NoError(t, err)

	empty, err := s.GetNodes(ctx, tree.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	nodes := []types.TreeNode{
		{ID: types.RootID, Question: "Q"},
		{ID: "a", ParentID: types.RootID, Answer: "A"},
		{ID: "a", ParentID: types.RootID, Answer: "dup"},
	}
	require.NoError(t, s.SaveNodes(ctx, tree.ID, nodes))

	got, err := s.GetNodes(ctx, tree.ID)
	require.NoError(t, err)
	assert.Equal(t, nodes[:2], got)

	body, ok, err := client.Get(ctx, NodesCollection, tree.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(body), `"lastModified"`)

	require.NoError(t, s.DeleteTree(ctx, tree.ID))
	_, err = s.GetTree(ctx, tree.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	got, err = s.GetNodes(ctx, tree.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_MalformedDocuments(t *testing.T) {
	ctx := context.Background()
	s, client := newTestStore(t)

	good, err := s.CreateTree(ctx, "Good")
	require.NoError(t, err)
	require.NoError(t, client.Put(ctx, TreesCollection, "bad", []byte(`not json`)))
	require.NoError(t, client.Put(ctx, NodesCollection, "bad", []byte(`[1,2]`)))

	trees, err := s.ListTrees(ctx)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, good.ID, trees[0].ID)

	_, err = s.GetTree(ctx, "bad")
	assert.ErrorIs(t, err, types.ErrSerialization)
	_, err = s.GetNodes(ctx, "bad")
	assert.ErrorIs(t, err, types.ErrSerialization)
}

func TestStore_PutTreePreservesFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tree := types.TreeData{ID: "fixed", Title: "Fixed", CreatedAt: ts, LastModified: ts}
	require.NoError(t, s.PutTree(ctx, tree))

	got, err := s.GetTree(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, tree, got)
	assert.ErrorIs(t, s.PutTree(ctx, types.TreeData{}), types.ErrInvalidID)
}

type failingClient struct {
	*MemoryClient
	err error
}

func (f failingClient) Put(context.Context, string, string, []byte) error { return f.err }
func (f failingClient) Delete(context.Context, string, string) error      { return f.err }

func TestStore_TransportErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	s := NewStore(failingClient{MemoryClient: NewMemoryClient(), err: boom}, nil)

	_, err := s.CreateTree(ctx, "x")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.SaveNodes(ctx, "t", nil), boom)
	assert.ErrorIs(t, s.DeleteTree(ctx, "t"), boom)
}

func TestMemoryClient_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newTestStore(t)

	_, err := s.ListTrees(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentsTable(t *testing.T) {
	tests := []struct {
		project string
		want    string
	}{
		{"", "documents"},
		{"my-project", "my_project_documents"},
		{"Acme.Prod", "acme_prod_documents"},
		{"42team", "p42team_documents"},
	}
	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentsTable(tt.project))
		})
	}
}

func TestBucketName(t *testing.T) {
	assert.Equal(t, "proj-storytree", BucketName(types.RemoteConfig{ProjectID: "proj"}))
	assert.Equal(t, "custom", BucketName(types.RemoteConfig{ProjectID: "proj", Bucket: "custom"}))
}

func TestDefaultDialers(t *testing.T) {
	dialers := DefaultDialers()
	assert.Contains(t, dialers, types.ProviderPostgres)
	assert.Contains(t, dialers, types.ProviderGCS)
}

func TestDialPostgres_RequiresURL(t *testing.T) {
	_, err := DialPostgres(context.Background(), types.RemoteConfig{Credential: "pw", ProjectID: "p"}, nil)
	assert.ErrorIs(t, err, types.ErrBackendUnavailable)
}
