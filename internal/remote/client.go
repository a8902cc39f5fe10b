// Package remote implements the asynchronous remote storage backend. Trees
// are JSON documents in a remote document store: one metadata document per
// tree in the "trees" collection and one document per tree holding the whole
// node array in the "tree-nodes" collection.
//
// Writes are last-write-wins. Two writers saving the same tree concurrently
// silently overwrite each other; there is no concurrency token.
package remote

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Document collections.
const (
	TreesCollection = "trees"
	NodesCollection = "tree-nodes"
)

// DocumentClient is a minimal remote document store. Each document is a JSON
// body addressed by collection and ID.
type DocumentClient interface {
	// Get returns the body of a document. ok is false when it does not exist.
	Get(ctx context.Context, collection, id string) (body []byte, ok bool, err error)

	// Put creates or replaces a document.
	Put(ctx context.Context, collection, id string, body []byte) error

	// Delete removes a document. Deleting a missing document succeeds.
	Delete(ctx context.Context, collection, id string) error

	// List returns the bodies of every document in collection.
	List(ctx context.Context, collection string) ([][]byte, error)

	// Close releases the connection.
	Close() error
}

// Dialer connects a DocumentClient from the remote configuration.
type Dialer func(ctx context.Context, cfg types.RemoteConfig, logger *slog.Logger) (DocumentClient, error)

// DefaultDialers returns the dialers for every supported provider, keyed by
// provider name.
func DefaultDialers() map[string]Dialer {
	return map[string]Dialer{
		types.ProviderPostgres: DialPostgres,
		types.ProviderGCS:      DialGCS,
	}
}
