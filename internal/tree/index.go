package tree

import "github.com/mesh-intelligence/storytree/pkg/types"

// index is an adjacency view of one node set, built once per operation.
// The first occurrence of an ID wins, matching save-time deduplication.
type index struct {
	byID     map[string]types.TreeNode
	children map[string][]string
}

func newIndex(nodes []types.TreeNode) *index {
	ix := &index{
		byID:     make(map[string]types.TreeNode, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		if _, dup := ix.byID[n.ID]; dup {
			continue
		}
		ix.byID[n.ID] = n
		if n.ParentID != "" {
			ix.children[n.ParentID] = append(ix.children[n.ParentID], n.ID)
		}
	}
	return ix
}

// closure returns id and every node reachable below it through child links.
// Each node is visited at most once, so cyclic input terminates.
func (ix *index) closure(id string) map[string]struct{} {
	marked := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range ix.children[cur] {
			if _, seen := marked[child]; seen {
				continue
			}
			marked[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return marked
}

// path walks parent links from id and returns the nodes in root-to-target
// order. The walk stops at a missing node or the first revisited node, so the
// result never exceeds the node count.
func (ix *index) path(id string) []types.TreeNode {
	var rev []types.TreeNode
	visited := make(map[string]struct{})
	for cur := id; cur != ""; {
		if _, seen := visited[cur]; seen {
			break
		}
		visited[cur] = struct{}{}
		n, ok := ix.byID[cur]
		if !ok {
			break
		}
		rev = append(rev, n)
		cur = n.ParentID
	}
	out := make([]types.TreeNode, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}

// cycleFrom reports whether walking parent links from id revisits a node.
// done holds nodes examined by earlier walks; reaching one ends the walk,
// since any cycle through it was already reported. Every node visited here
// is added to done.
func (ix *index) cycleFrom(id string, done map[string]struct{}) bool {
	local := make(map[string]struct{})
	for cur := id; cur != ""; {
		if _, seen := local[cur]; seen {
			return true
		}
		if _, seen := done[cur]; seen {
			return false
		}
		local[cur] = struct{}{}
		done[cur] = struct{}{}
		n, ok := ix.byID[cur]
		if !ok {
			return false
		}
		cur = n.ParentID
	}
	return false
}
