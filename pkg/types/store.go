package types

import "context"

// Backend kinds reported by Store.Kind.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// Store defines the storage contract shared by the local and remote
// backends. Every method may block on I/O; remote implementations block on a
// network round trip and honor ctx cancellation.
//
// Stores provide no locking across calls. Writers to the same tree race and
// the last SaveNodes wins.
type Store interface {
	// CreateTree allocates a new tree ID, stamps CreatedAt and LastModified,
	// and persists the metadata record.
	CreateTree(ctx context.Context, title string) (TreeData, error)

	// GetTree returns the metadata for id, or ErrNotFound.
	GetTree(ctx context.Context, id string) (TreeData, error)

	// ListTrees returns all tree metadata, most recently modified first.
	ListTrees(ctx context.Context) ([]TreeData, error)

	// UpdateTree merges patch into the tree and refreshes LastModified.
	// Returns ErrNotFound if the tree does not exist.
	UpdateTree(ctx context.Context, id string, patch TreePatch) error

	// DeleteTree removes the metadata and the whole node collection.
	// Deleting a missing tree succeeds.
	DeleteTree(ctx context.Context, id string) error

	// SaveNodes overwrites the node collection of treeID. Duplicate IDs are
	// dropped before persisting; the first occurrence wins.
	SaveNodes(ctx context.Context, treeID string, nodes []TreeNode) error

	// GetNodes returns the node collection of treeID, or an empty slice.
	GetNodes(ctx context.Context, treeID string) ([]TreeNode, error)

	// Kind reports KindLocal or KindRemote.
	Kind() string

	// Close releases backend resources. Idempotent.
	Close() error
}
