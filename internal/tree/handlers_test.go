package tree

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, chain()...)
	h := f.svc.Handlers(f.tree.ID)
	assert.Equal(t, f.tree.ID, h.TreeID())

	h.SetFlags("a", types.NodeFlags{ShowQuestionInput: true, ShowEditInput: true})
	require.NoError(t, h.OnUpdateNode(ctx, "a", types.NodePatch{Question: types.StringPtr("Why?")}))
	require.NoError(t, h.OnClearQuestion(ctx, "a"))

	nodes, err := f.svc.GetNodes(ctx, f.tree.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes[1].Question)
	assert.Equal(t, "A", nodes[1].Answer)
	assert.Equal(t, types.NodeFlags{ShowEditInput: true}, h.Flags("a"))

	added, err := h.OnAddNodes(ctx, []types.TreeNode{{ParentID: "a", Answer: "new"}})
	require.NoError(t, err)
	require.Len(t, added, 1)

	require.NoError(t, h.OnDeleteNode(ctx, "a"))
	nodes, err = f.svc.GetNodes(ctx, f.tree.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{types.RootID, "d"}, ids(nodes))

	assert.NoError(t, h.OnUpdateNode(ctx, "a", types.NodePatch{}), "missing node is a no-op")
}

func TestOverlay(t *testing.T) {
	o := NewOverlay()
	o.Set("t1", "n1", types.NodeFlags{Generating: true})
	o.Set("t2", "n1", types.NodeFlags{ShowEditInput: true})

	assert.True(t, o.Get("t1", "n1").Generating)
	assert.False(t, o.Get("t2", "n1").Generating)

	o.Update("t1", "n1", func(f *types.NodeFlags) { f.Generating = false })
	assert.Empty(t, o.Snapshot("t1"), "zero flags are not kept")

	o.Set("t2", "n2", types.NodeFlags{ShowQuestionInput: true})
	assert.Len(t, o.Snapshot("t2"), 2)
	o.Clear("t2", "n2")
	assert.Len(t, o.Snapshot("t2"), 1)
	o.ClearTree("t2")
	assert.Empty(t, o.Snapshot("t2"))
}

func TestOverlay_Concurrent(t *testing.T) {
	o := NewOverlay()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				o.Update("t", "n", func(f *types.NodeFlags) { f.Generating = !f.Generating })
				_ = o.Snapshot("t")
			}
		}()
	}
	wg.Wait()
	assert.False(t, o.Get("t", "n").Generating, "an even number of toggles")
}
