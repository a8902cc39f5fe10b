package tree

import (
	"context"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Handlers are the mutation callbacks a presentation layer binds to one
// tree. They are the only mutation entry points it is expected to use.
type Handlers struct {
	svc    *Service
	treeID string
}

// Handlers returns the callbacks bound to treeID.
func (s *Service) Handlers(treeID string) Handlers {
	return Handlers{svc: s, treeID: treeID}
}

// TreeID returns the tree the handlers are bound to.
func (h Handlers) TreeID() string {
	return h.treeID
}

// OnUpdateNode merges patch into a node. Missing nodes are ignored.
func (h Handlers) OnUpdateNode(ctx context.Context, nodeID string, patch types.NodePatch) error {
	_, err := h.svc.UpdateNode(ctx, h.treeID, nodeID, patch)
	return err
}

// OnAddNodes appends nodes to the tree.
func (h Handlers) OnAddNodes(ctx context.Context, nodes []types.TreeNode) ([]types.TreeNode, error) {
	return h.svc.AddNodes(ctx, h.treeID, nodes)
}

// OnDeleteNode removes a node and its descendants.
func (h Handlers) OnDeleteNode(ctx context.Context, nodeID string) error {
	_, err := h.svc.DeleteNode(ctx, h.treeID, nodeID)
	return err
}

// OnClearQuestion unsets the question of a node and hides its question
// input.
func (h Handlers) OnClearQuestion(ctx context.Context, nodeID string) error {
	h.svc.overlay.Update(h.treeID, nodeID, func(f *types.NodeFlags) { f.ShowQuestionInput = false })
	_, err := h.svc.UpdateNode(ctx, h.treeID, nodeID, types.NodePatch{ClearQuestion: true})
	return err
}

// Flags returns the presentation flags of a node.
func (h Handlers) Flags(nodeID string) types.NodeFlags {
	return h.svc.overlay.Get(h.treeID, nodeID)
}

// SetFlags replaces the presentation flags of a node.
func (h Handlers) SetFlags(nodeID string, f types.NodeFlags) {
	h.svc.overlay.Set(h.treeID, nodeID, f)
}
