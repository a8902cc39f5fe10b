// Package local implements the synchronous local storage backend. Trees are
// stored as JSON records on a key-value engine: one record holds the ordered
// tree metadata list and one record per tree holds its node array.
package local

import "errors"

// KV is the key-value engine under the local store. Implementations are safe
// for concurrent use and apply each call atomically.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Put creates or replaces the value for key.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key succeeds.
	Delete(key string) error

	// Keys returns every key starting with prefix, in ascending order.
	Keys(prefix string) ([]string, error)

	// Close releases engine resources. Idempotent.
	Close() error
}

// ErrKVClosed is returned by engine calls made after Close.
var ErrKVClosed = errors.New("key-value engine is closed")
