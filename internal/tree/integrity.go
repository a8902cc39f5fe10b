package tree

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// DeduplicateNodes drops repeated node IDs, keeping the first occurrence, and
// returns how many were dropped. The tree is written only when something was
// dropped.
func (s *Service) DeduplicateNodes(ctx context.Context, treeID string) (int, error) {
	nodes, err := s.store.GetNodes(ctx, treeID)
	if err != nil {
		return 0, err
	}
	unique, dropped := types.DedupNodes(nodes)
	if dropped == 0 {
		return 0, nil
	}
	if err := s.store.SaveNodes(ctx, treeID, unique); err != nil {
		return 0, err
	}
	s.logger.Info("duplicate nodes removed", "tree_id", treeID, "count", dropped)
	return dropped, nil
}

// ValidateTreeStructure checks the stored node set of a tree. See Validate.
func (s *Service) ValidateTreeStructure(ctx context.Context, treeID string) (types.Validation, error) {
	nodes, err := s.store.GetNodes(ctx, treeID)
	if err != nil {
		return types.Validation{}, err
	}
	v := Validate(nodes)
	if !v.Valid {
		s.logger.Warn("tree structure issues found", "tree_id", treeID, "count", len(v.Issues))
	}
	return v, nil
}

// Validate reports structural violations in nodes: a missing root, a root
// that has a parent, orphans (a non-root node whose parent does not exist or
// that has no parent), and parent-link cycles. Repeated IDs are judged by
// their first occurrence. Orphans are reported, never repaired.
func Validate(nodes []types.TreeNode) types.Validation {
	ix := newIndex(nodes)
	issues := []types.Issue{}

	root, ok := ix.byID[types.RootID]
	switch {
	case !ok:
		issues = append(issues, types.Issue{
			Kind:    types.IssueMissingRoot,
			Message: "Missing root node",
		})
	case !root.IsRoot():
		issues = append(issues, types.Issue{
			Kind:    types.IssueRootHasParent,
			NodeID:  types.RootID,
			Message: fmt.Sprintf("Root node has parent: %s", root.ParentID),
		})
	}

	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		if n.ID == types.RootID {
			continue
		}
		switch {
		case n.ParentID == "":
			issues = append(issues, types.Issue{
				Kind:    types.IssueOrphan,
				NodeID:  n.ID,
				Message: fmt.Sprintf("Orphaned node: %s (no parent)", n.ID),
			})
		case !hasNode(ix, n.ParentID):
			issues = append(issues, types.Issue{
				Kind:    types.IssueOrphan,
				NodeID:  n.ID,
				Message: fmt.Sprintf("Orphaned node: %s (parent %s not found)", n.ID, n.ParentID),
			})
		}
	}

	done := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if ix.cycleFrom(n.ID, done) {
			issues = append(issues, types.Issue{
				Kind:    types.IssueCycle,
				NodeID:  n.ID,
				Message: fmt.Sprintf("Circular reference detected involving node: %s", n.ID),
			})
		}
	}

	return types.Validation{Valid: len(issues) == 0, Issues: issues}
}

func hasNode(ix *index, id string) bool {
	_, ok := ix.byID[id]
	return ok
}
