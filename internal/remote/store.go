package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// nodesDocument is the body stored in the tree-nodes collection.
type nodesDocument struct {
	Nodes        []types.TreeNode `json:"nodes"`
	LastModified time.Time        `json:"lastModified"`
}

// Store implements types.Store over a DocumentClient. Every call performs at
// least one network round trip and returns transport errors unchanged
// (wrapped with operation context).
type Store struct {
	client DocumentClient
	logger *slog.Logger
	now    func() time.Time
}

var _ types.Store = (*Store)(nil)

// NewStore wraps client. A nil logger discards logs.
func NewStore(client DocumentClient, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Kind reports types.KindRemote.
func (s *Store) Kind() string {
	return types.KindRemote
}

// Close closes the document client.
func (s *Store) Close() error {
	return s.client.Close()
}

// CreateTree allocates a UUID v7 ID and writes the metadata document.
func (s *Store) CreateTree(ctx context.Context, title string) (types.TreeData, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return types.TreeData{}, fmt.Errorf("generating UUID v7: %w", err)
	}
	now := s.now()
	tree := types.TreeData{
		ID:           id.String(),
		Title:        title,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := s.putTree(ctx, tree); err != nil {
		return types.TreeData{}, err
	}
	s.logger.Debug("tree created", "tree_id", tree.ID, "backend", types.KindRemote)
	return tree, nil
}

// PutTree writes tree metadata as given. Used by archive import.
func (s *Store) PutTree(ctx context.Context, tree types.TreeData) error {
	if tree.ID == "" {
		return types.ErrInvalidID
	}
	return s.putTree(ctx, tree)
}

// GetTree fetches the metadata document for id.
func (s *Store) GetTree(ctx context.Context, id string) (types.TreeData, error) {
	if id == "" {
		return types.TreeData{}, types.ErrInvalidID
	}
	body, ok, err := s.client.Get(ctx, TreesCollection, id)
	if err != nil {
		return types.TreeData{}, fmt.Errorf("get tree %s: %w", id, err)
	}
	if !ok {
		return types.TreeData{}, fmt.Errorf("tree %s: %w", id, types.ErrNotFound)
	}
	var tree types.TreeData
	if err := json.Unmarshal(body, &tree); err != nil {
		return types.TreeData{}, fmt.Errorf("%w: tree %s: %v", types.ErrSerialization, id, err)
	}
	if tree.ID == "" {
		tree.ID = id
	}
	return tree, nil
}

// ListTrees returns every metadata document, most recently modified first.
// Malformed documents are skipped and logged.
func (s *Store) ListTrees(ctx context.Context) ([]types.TreeData, error) {
	bodies, err := s.client.List(ctx, TreesCollection)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	trees := make([]types.TreeData, 0, len(bodies))
	for _, body := range bodies {
		var tree types.TreeData
		if err := json.Unmarshal(body, &tree); err != nil || tree.ID == "" {
			s.logger.Warn("skipping malformed tree document", "error", err)
			continue
		}
		trees = append(trees, tree)
	}
	types.SortByLastModified(trees)
	return trees, nil
}

// UpdateTree reads, merges, and rewrites the metadata document.
func (s *Store) UpdateTree(ctx context.Context, id string, patch types.TreePatch) error {
	tree, err := s.GetTree(ctx, id)
	if err != nil {
		return err
	}
	patch.Apply(&tree)
	tree.LastModified = s.now()
	return s.putTree(ctx, tree)
}

// DeleteTree removes the metadata and node documents concurrently.
func (s *Store) DeleteTree(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.client.Delete(gctx, TreesCollection, id); err != nil {
			return fmt.Errorf("delete tree %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.client.Delete(gctx, NodesCollection, id); err != nil {
			return fmt.Errorf("delete nodes of %s: %w", id, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Debug("tree deleted", "tree_id", id, "backend", types.KindRemote)
	return nil
}

// SaveNodes deduplicates nodes and overwrites the node document.
func (s *Store) SaveNodes(ctx context.Context, treeID string, nodes []types.TreeNode) error {
	if treeID == "" {
		return types.ErrInvalidID
	}
	unique, dropped := types.DedupNodes(nodes)
	if dropped > 0 {
		s.logger.Debug("dropped duplicate nodes", "tree_id", treeID, "count", dropped)
	}
	body, err := json.Marshal(nodesDocument{Nodes: unique, LastModified: s.now()})
	if err != nil {
		return fmt.Errorf("encode nodes of %s: %w", treeID, err)
	}
	if err := s.client.Put(ctx, NodesCollection, treeID, body); err != nil {
		return fmt.Errorf("save nodes of %s: %w", treeID, err)
	}
	return nil
}

// GetNodes fetches the node document, or returns an empty slice.
func (s *Store) GetNodes(ctx context.Context, treeID string) ([]types.TreeNode, error) {
	if treeID == "" {
		return nil, types.ErrInvalidID
	}
	body, ok, err := s.client.Get(ctx, NodesCollection, treeID)
	if err != nil {
		return nil, fmt.Errorf("get nodes of %s: %w", treeID, err)
	}
	if !ok {
		return []types.TreeNode{}, nil
	}
	var doc nodesDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: nodes of %s: %v", types.ErrSerialization, treeID, err)
	}
	if doc.Nodes == nil {
		return []types.TreeNode{}, nil
	}
	return doc.Nodes, nil
}

func (s *Store) putTree(ctx context.Context, tree types.TreeData) error {
	body, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", tree.ID, err)
	}
	if err := s.client.Put(ctx, TreesCollection, tree.ID, body); err != nil {
		return fmt.Errorf("put tree %s: %w", tree.ID, err)
	}
	return nil
}
