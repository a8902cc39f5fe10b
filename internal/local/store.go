package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Record keys. Tree node arrays live under NodesPrefix+treeID.
const (
	TreesKey       = "story-trees"
	NodesPrefix    = "tree-"
	CurrentTreeKey = "current-tree-id"
)

// NodesKey returns the record key holding the node array of treeID.
func NodesKey(treeID string) string {
	return NodesPrefix + treeID
}

// TreeIDFromKey returns the tree ID encoded in a node record key.
func TreeIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, NodesPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, NodesPrefix), true
}

// Store implements types.Store on a KV engine. Calls complete synchronously;
// ctx is only checked for cancellation before work starts.
type Store struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles on the metadata list.
	mu sync.Mutex
}

var _ types.Store = (*Store)(nil)

// NewStore wraps kv. A nil logger discards logs.
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		kv:     kv,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Open opens the engine selected by cfg in cfg.DataDir and wraps it in a
// Store.
func Open(cfg types.Config, logger *slog.Logger) (*Store, error) {
	var (
		kv  KV
		err error
	)
	switch cfg.LocalEngine() {
	case types.EngineSQLite:
		kv, err = OpenSQLite(cfg.DataDir)
	case types.EngineBadger:
		kv, err = OpenBadger(BadgerConfig{Dir: BadgerDir(cfg.DataDir), Logger: logger})
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrEngineUnknown, cfg.Engine)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(kv, logger), nil
}

// KV returns the underlying engine.
func (s *Store) KV() KV {
	return s.kv
}

// Kind reports types.KindLocal.
func (s *Store) Kind() string {
	return types.KindLocal
}

// Close closes the engine.
func (s *Store) Close() error {
	return s.kv.Close()
}

// CreateTree allocates a UUID v7 ID and prepends the tree to the metadata
// list.
func (s *Store) CreateTree(ctx context.Context, title string) (types.TreeData, error) {
	if err := ctx.Err(); err != nil {
		return types.TreeData{}, err
	}

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

	s.mu.Lock()
	defer s.mu.Unlock()

	trees, err := s.readTrees()
	if err != nil {
		return types.TreeData{}, err
	}
	trees = append([]types.TreeData{tree}, trees...)
	if err := s.writeTrees(trees); err != nil {
		return types.TreeData{}, err
	}

	s.logger.Debug("tree created", "tree_id", tree.ID, "title", title)
	return tree, nil
}

// PutTree writes tree metadata as given, replacing any record with the same
// ID. Used by archive import to preserve IDs and timestamps.
func (s *Store) PutTree(ctx context.Context, tree types.TreeData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tree.ID == "" {
		return types.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trees, err := s.readTrees()
	if err != nil {
		return err
	}
	replaced := false
	for i := range trees {
		if trees[i].ID == tree.ID {
			trees[i] = tree
			replaced = true
			break
		}
	}
	if !replaced {
		trees = append([]types.TreeData{tree}, trees...)
	}
	return s.writeTrees(trees)
}

// GetTree returns the metadata for id.
func (s *Store) GetTree(ctx context.Context, id string) (types.TreeData, error) {
	if err := ctx.Err(); err != nil {
		return types.TreeData{}, err
	}
	if id == "" {
		return types.TreeData{}, types.ErrInvalidID
	}

	trees, err := s.readTrees()
	if err != nil {
		return types.TreeData{}, err
	}
	for _, t := range trees {
		if t.ID == id {
			return t, nil
		}
	}
	return types.TreeData{}, fmt.Errorf("tree %s: %w", id, types.ErrNotFound)
}

// ListTrees returns all trees, most recently modified first.
func (s *Store) ListTrees(ctx context.Context) ([]types.TreeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trees, err := s.readTrees()
	if err != nil {
		return nil, err
	}
	types.SortByLastModified(trees)
	return trees, nil
}

// UpdateTree merges patch and refreshes LastModified.
func (s *Store) UpdateTree(ctx context.Context, id string, patch types.TreePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trees, err := s.readTrees()
	if err != nil {
		return err
	}
	for i := range trees {
		if trees[i].ID != id {
			continue
		}
		patch.Apply(&trees[i])
		trees[i].LastModified = s.now()
		return s.writeTrees(trees)
	}
	return fmt.Errorf("tree %s: %w", id, types.ErrNotFound)
}

// DeleteTree removes the metadata entry and the node record.
func (s *Store) DeleteTree(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	trees, err := s.readTrees()
	if err != nil {
		return err
	}
	kept := trees[:0]
	for _, t := range trees {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if err := s.writeTrees(kept); err != nil {
		return err
	}
	if err := s.kv.Delete(NodesKey(id)); err != nil {
		return err
	}

	s.logger.Debug("tree deleted", "tree_id", id)
	return nil
}

// SaveNodes deduplicates nodes and overwrites the node record of treeID.
func (s *Store) SaveNodes(ctx context.Context, treeID string, nodes []types.TreeNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if treeID == "" {
		return types.ErrInvalidID
	}

	unique, dropped := types.DedupNodes(nodes)
	if dropped > 0 {
		s.logger.Debug("dropped duplicate nodes", "tree_id", treeID, "count", dropped)
	}
	data, err := json.Marshal(unique)
	if err != nil {
		return fmt.Errorf("encode nodes of %s: %w", treeID, err)
	}
	return s.kv.Put(NodesKey(treeID), data)
}

// GetNodes returns the node array of treeID, or an empty slice.
func (s *Store) GetNodes(ctx context.Context, treeID string) ([]types.TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if treeID == "" {
		return nil, types.ErrInvalidID
	}

	data, ok, err := s.kv.Get(NodesKey(treeID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.TreeNode{}, nil
	}
	var nodes []types.TreeNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSerialization, NodesKey(treeID), err)
	}
	if nodes == nil {
		nodes = []types.TreeNode{}
	}
	return nodes, nil
}

// CurrentTree returns the session's current tree pointer. ok is false when
// no tree is selected. The pointer always lives in the local engine, whatever
// backend holds the trees.
func (s *Store) CurrentTree(ctx context.Context) (id string, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, ok, err := s.kv.Get(CurrentTreeKey)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), len(data) > 0, nil
}

// SetCurrentTree stores the current tree pointer.
func (s *Store) SetCurrentTree(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}
	return s.kv.Put(CurrentTreeKey, []byte(id))
}

// ClearCurrentTree removes the current tree pointer.
func (s *Store) ClearCurrentTree(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.kv.Delete(CurrentTreeKey)
}

// readTrees decodes the metadata list. A missing record is an empty list.
func (s *Store) readTrees() ([]types.TreeData, error) {
	data, ok, err := s.kv.Get(TreesKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.TreeData{}, nil
	}
	var trees []types.TreeData
	if err := json.Unmarshal(data, &trees); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSerialization, TreesKey, err)
	}
	return trees, nil
}

// writeTrees encodes and stores the metadata list. The caller must hold mu.
func (s *Store) writeTrees(trees []types.TreeData) error {
	if trees == nil {
		trees = []types.TreeData{}
	}
	data, err := json.Marshal(trees)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TreesKey, err)
	}
	return s.kv.Put(TreesKey, data)
}
