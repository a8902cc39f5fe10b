// Package types defines the tree and node entities, the Store interface that
// every storage backend implements, backend configuration, and the standard
// errors shared by the storytree packages.
package types
