package tree

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/storytree/internal/generate"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// ExtendOptions tune one Extend call.
type ExtendOptions struct {
	Length   generate.Length
	Language string
}

// Extend asks the generator for count continuations of nodeID and attaches
// each as a new child node. The node is flagged as generating for the
// duration of the call; the flag is cleared on success and on failure. When
// generation fails nothing is attached.
func (s *Service) Extend(ctx context.Context, treeID, nodeID string, count int, opts ExtendOptions) ([]types.TreeNode, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	if count < 1 {
		return nil, fmt.Errorf("extend %s: count must be positive, got %d", nodeID, count)
	}

	nodes, err := s.store.GetNodes(ctx, treeID)
	if err != nil {
		return nil, err
	}
	i := indexOf(nodes, nodeID)
	if i < 0 {
		return nil, fmt.Errorf("node %s in tree %s: %w", nodeID, treeID, types.ErrNotFound)
	}

	s.overlay.Update(treeID, nodeID, func(f *types.NodeFlags) { f.Generating = true })
	defer s.overlay.Update(treeID, nodeID, func(f *types.NodeFlags) { f.Generating = false })

	req := generate.Request{
		Question: nodes[i].Question,
		Context:  Context(Path(nodes, nodeID)),
		Count:    count,
		Length:   opts.Length,
		Language: opts.Language,
	}
	s.logger.Debug("extending node", "tree_id", treeID, "node_id", nodeID, "count", count)

	answers, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logger.Warn("generation failed", "tree_id", treeID, "node_id", nodeID, "error", err)
		return nil, fmt.Errorf("generate continuations of %s: %w", nodeID, err)
	}
	if len(answers) > count {
		answers = answers[:count]
	}

	children := make([]types.TreeNode, 0, len(answers))
	for _, a := range answers {
		id, err := s.newID()
		if err != nil {
			return nil, err
		}
		children = append(children, types.TreeNode{ID: id, Answer: a, ParentID: nodeID})
	}
	return s.AddNodes(ctx, treeID, children)
}
