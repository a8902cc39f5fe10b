package types

import (
	"sort"
	"time"
)

// TreeData is the metadata record of a single tree. The node collection is
// stored separately and keyed by ID.
type TreeData struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// TreePatch is a partial update to tree metadata. Nil fields are left
// untouched. LastModified is never patched directly; stores refresh it on
// every update.
type TreePatch struct {
	Title *string `json:"title,omitempty"`
}

// Apply merges the patch into t.
func (p TreePatch) Apply(t *TreeData) {
	if p.Title != nil {
		t.Title = *p.Title
	}
}

// SortByLastModified orders trees most-recently-modified first. Ties keep
// their relative order.
func SortByLastModified(trees []TreeData) {
	sort.SliceStable(trees, func(i, j int) bool {
		return trees[i].LastModified.After(trees[j].LastModified)
	})
}
