package tree

import (
	"context"
	"strings"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// GetRootNode returns the node with the root ID. ok is false when the tree
// has none.
func (s *Service) GetRootNode(ctx context.Context, treeID string) (root types.TreeNode, ok bool, err error) {
	nodes, err := s.store.GetNodes(ctx, treeID)
	if err != nil {
		return types.TreeNode{}, false, err
	}
	if i := indexOf(nodes, types.RootID); i >= 0 {
		return nodes[i], true, nil
	}
	return types.TreeNode{}, false, nil
}

// GetChildren returns the direct children of parentID in stored order.
func (s *Service) GetChildren(ctx context.Context, treeID, parentID string) ([]types.TreeNode, error) {
	nodes, err := s.store.GetNodes(ctx, treeID)
	if err != nil {
		return nil, err
	}
	children := []types.TreeNode{}
	for _, n := range nodes {
		if n.ParentID == parentID && n.ID != parentID {
			children = append(children, n)
		}
	}
	return children, nil
}

// GetNodePath returns the nodes from the root down to nodeID. On malformed
// data the path is truncated at a missing parent or at the first node seen
// twice.
func (s *Service) GetNodePath(ctx context.Context, treeID, nodeID string) ([]types.TreeNode, error) {
	nodes, err := s.store.GetNodes(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return Path(nodes, nodeID), nil
}

// BuildContext returns the conversational context for nodeID. See Context.
func (s *Service) BuildContext(ctx context.Context, treeID, nodeID string) (string, error) {
	path, err := s.GetNodePath(ctx, treeID, nodeID)
	if err != nil {
		return "", err
	}
	return Context(path), nil
}

// BuildStoryThread returns the narrative for nodeID. See Thread.
func (s *Service) BuildStoryThread(ctx context.Context, treeID, nodeID string) (string, error) {
	path, err := s.GetNodePath(ctx, treeID, nodeID)
	if err != nil {
		return "", err
	}
	return Thread(path), nil
}

// Path returns the root-to-target path of nodeID within nodes.
func Path(nodes []types.TreeNode, nodeID string) []types.TreeNode {
	return newIndex(nodes).path(nodeID)
}

// Context renders a path as "Q: ..." and "A: ..." lines, one per present
// field, joined by newlines.
func Context(path []types.TreeNode) string {
	lines := make([]string, 0, 2*len(path))
	for _, n := range path {
		if n.Question != "" {
			lines = append(lines, "Q: "+n.Question)
		}
		if n.Answer != "" {
			lines = append(lines, "A: "+n.Answer)
		}
	}
	return strings.Join(lines, "\n")
}

// Thread joins the answers along a path with blank lines. Questions are
// omitted.
func Thread(path []types.TreeNode) string {
	parts := make([]string, 0, len(path))
	for _, n := range path {
		if n.Answer != "" {
			parts = append(parts, n.Answer)
		}
	}
	return strings.Join(parts, "\n\n")
}
