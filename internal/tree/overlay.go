package tree

import (
	"sync"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

type nodeKey struct {
	tree string
	node string
}

// Overlay holds transient presentation flags per node. It is never
// persisted and is safe for concurrent use. Nodes with no flag set take no
// space.
type Overlay struct {
	mu    sync.RWMutex
	flags map[nodeKey]types.NodeFlags
}

// NewOverlay returns an empty Overlay.
func NewOverlay() *Overlay {
	return &Overlay{flags: make(map[nodeKey]types.NodeFlags)}
}

// Get returns the flags of one node.
func (o *Overlay) Get(treeID, nodeID string) types.NodeFlags {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.flags[nodeKey{treeID, nodeID}]
}

// Set replaces the flags of one node.
func (o *Overlay) Set(treeID, nodeID string, f types.NodeFlags) {
	o.Update(treeID, nodeID, func(cur *types.NodeFlags) { *cur = f })
}

// Update applies fn to the flags of one node under the lock.
func (o *Overlay) Update(treeID, nodeID string, fn func(*types.NodeFlags)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	k := nodeKey{treeID, nodeID}
	f := o.flags[k]
	fn(&f)
	if f.IsZero() {
		delete(o.flags, k)
		return
	}
	o.flags[k] = f
}

// Clear drops the flags of one node.
func (o *Overlay) Clear(treeID, nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.flags, nodeKey{treeID, nodeID})
}

// ClearTree drops the flags of every node of a tree.
func (o *Overlay) ClearTree(treeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k := range o.flags {
		if k.tree == treeID {
			delete(o.flags, k)
		}
	}
}

// Snapshot returns a copy of the non-zero flags of a tree keyed by node ID.
func (o *Overlay) Snapshot(treeID string) map[string]types.NodeFlags {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]types.NodeFlags)
	for k, f := range o.flags {
		if k.tree == treeID {
			out[k.node] = f
		}
	}
	return out
}
