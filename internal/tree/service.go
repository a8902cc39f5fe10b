// Package tree implements the tree service: traversal, mutation with
// cascading delete and timestamp bookkeeping, and integrity checks over the
// node set of one tree.
//
// The service holds no tree content between calls. Every operation reads the
// node set from the store, works on it, and writes it back with one
// SaveNodes, so a failed call leaves the stored tree unchanged.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/storytree/internal/generate"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// ErrNoGenerator is returned by Extend when the service has no generator.
var ErrNoGenerator = errors.New("no content generator configured")

// Service runs tree operations against a types.Store.
type Service struct {
	store     types.Store
	generator generate.Generator
	overlay   *Overlay
	logger    *slog.Logger
	newID     func() (string, error)
}

// New returns a Service over store. gen may be nil, in which case Extend
// fails with ErrNoGenerator. A nil logger discards logs.
func New(store types.Store, gen generate.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     store,
		generator: gen,
		overlay:   NewOverlay(),
		logger:    logger,
		newID:     newNodeID,
	}
}

func newNodeID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// Overlay returns the presentation flags held for this service's trees.
func (s *Service) Overlay() *Overlay {
	return s.overlay
}

// CreateTree creates tree metadata and, when initialQuestion is not empty,
// a root node carrying it.
func (s *Service) CreateTree(ctx context.Context, title, initialQuestion string) (types.TreeData, error) {
	tree, err := s.store.CreateTree(ctx, title)
	if err != nil {
		return types.TreeData{}, err
	}
	if initialQuestion != "" {
		root := types.TreeNode{ID: types.RootID, Question: initialQuestion}
		if err := s.store.SaveNodes(ctx, tree.ID, []types.TreeNode{root}); err != nil {
			return types.TreeData{}, fmt.Errorf("save root of %s: %w", tree.ID, err)
		}
	}
	s.logger.Info("tree created", "tree_id", tree.ID, "title", title, "backend", s.store.Kind())
	return tree, nil
}

// GetTree returns tree metadata, or an error wrapping types.ErrNotFound.
func (s *Service) GetTree(ctx context.Context, id string) (types.TreeData, error) {
	return s.store.GetTree(ctx, id)
}

// ListTrees returns all trees, most recently modified first.
func (s *Service) ListTrees(ctx context.Context) ([]types.TreeData, error) {
	return s.store.ListTrees(ctx)
}

// UpdateTree merges patch into the tree metadata.
func (s *Service) UpdateTree(ctx context.Context, id string, patch types.TreePatch) error {
	return s.store.UpdateTree(ctx, id, patch)
}

// DeleteTree removes the tree with all of its nodes and drops its overlay.
func (s *Service) DeleteTree(ctx context.Context, id string) error {
	if err := s.store.DeleteTree(ctx, id); err != nil {
		return err
	}
	s.overlay.ClearTree(id)
	s.logger.Info("tree deleted", "tree_id", id)
	return nil
}

// GetNodes returns the node set of a tree.
func (s *Service) GetNodes(ctx context.Context, treeID string) ([]types.TreeNode, error) {
	return s.store.GetNodes(ctx, treeID)
}

// AddNode appends one node. See AddNodes.
func (s *Service) AddNode(ctx context.Context, treeID string, node types.TreeNode) (types.TreeNode, error) {
	added, err := s.AddNodes(ctx, treeID, []types.TreeNode{node})
	if err != nil {
		return types.TreeNode{}, err
	}
	return added[0], nil
}

// AddNodes appends nodes to the tree, saves, and refreshes the tree's
// LastModified. Nodes without an ID get a UUID v7. A node whose ID already
// exists is dropped by the save. The nodes as submitted, with IDs filled,
// are returned.
func (s *Service) AddNodes(ctx context.Context, treeID string, nodes []types.TreeNode) ([]types.TreeNode, error) {
	added := make([]types.TreeNode, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			id, err := s.newID()
			if err != nil {
				return nil, err
			}
			n.ID = id
		}
		added[i] = n
	}

	existing, err := s.load(ctx, treeID)
	if err != nil {
		return nil, err
	}
	all := append(existing, added...)
	if err := s.save(ctx, treeID, all); err != nil {
		return nil, err
	}
	s.logger.Debug("nodes added", "tree_id", treeID, "count", len(added))
	return added, nil
}

// UpdateNode merges patch into the node with nodeID. A missing node is not an
// error: nothing is written and ok is false.
func (s *Service) UpdateNode(ctx context.Context, treeID, nodeID string, patch types.NodePatch) (ok bool, err error) {
	nodes, err := s.load(ctx, treeID)
	if err != nil {
		return false, err
	}
	i := indexOf(nodes, nodeID)
	if i < 0 {
		s.logger.Debug("update of missing node ignored", "tree_id", treeID, "node_id", nodeID)
		return false, nil
	}
	patch.Apply(&nodes[i])
	if err := s.save(ctx, treeID, nodes); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteNode removes nodeID and all of its descendants in one save and
// returns how many nodes were removed. A missing node removes nothing.
func (s *Service) DeleteNode(ctx context.Context, treeID, nodeID string) (int, error) {
	nodes, err := s.load(ctx, treeID)
	if err != nil {
		return 0, err
	}
	if indexOf(nodes, nodeID) < 0 {
		return 0, nil
	}

	doomed := newIndex(nodes).closure(nodeID)
	kept := make([]types.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := doomed[n.ID]; !ok {
			kept = append(kept, n)
		}
	}
	if err := s.save(ctx, treeID, kept); err != nil {
		return 0, err
	}
	for id := range doomed {
		s.overlay.Clear(treeID, id)
	}

	removed := len(nodes) - len(kept)
	s.logger.Debug("nodes deleted", "tree_id", treeID, "node_id", nodeID, "count", removed)
	return removed, nil
}

// load fetches the node set after checking that the tree exists. The two
// reads run concurrently.
func (s *Service) load(ctx context.Context, treeID string) ([]types.TreeNode, error) {
	var nodes []types.TreeNode
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.store.GetTree(gctx, treeID)
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = s.store.GetNodes(gctx, treeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// save writes the node set and refreshes the tree's LastModified.
func (s *Service) save(ctx context.Context, treeID string, nodes []types.TreeNode) error {
	if err := s.store.SaveNodes(ctx, treeID, nodes); err != nil {
		return err
	}
	if err := s.store.UpdateTree(ctx, treeID, types.TreePatch{}); err != nil {
		return fmt.Errorf("touch tree %s: %w", treeID, err)
	}
	return nil
}

func indexOf(nodes []types.TreeNode, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
