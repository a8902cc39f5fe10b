package types

// RootID is the sentinel ID of the distinguished root node of every tree.
const RootID = "root"

// TreeNode is a single question/answer unit. Empty strings mean the field is
// absent. Only the root node has an empty ParentID in well-formed data.
//
// TreeNode carries no presentation state; transient flags such as
// "generating" live in NodeFlags, keyed by node ID, outside the persisted
// record.
type TreeNode struct {
	ID       string `json:"id"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// IsRoot reports whether n is the root node.
func (n TreeNode) IsRoot() bool {
	return n.ID == RootID && n.ParentID == ""
}

// HasContent reports whether n carries a question or an answer.
func (n TreeNode) HasContent() bool {
	return n.Question != "" || n.Answer != ""
}

// NodePatch is a partial update to a node. Nil fields are left untouched.
// ClearQuestion unsets the question and wins over Question.
type NodePatch struct {
	Question      *string `json:"question,omitempty"`
	Answer        *string `json:"answer,omitempty"`
	ParentID      *string `json:"parentId,omitempty"`
	ClearQuestion bool    `json:"clearQuestion,omitempty"`
}

// Apply merges the patch into n. The node ID is never changed.
func (p NodePatch) Apply(n *TreeNode) {
	if p.Question != nil {
		n.Question = *p.Question
	}
	if p.ClearQuestion {
		n.Question = ""
	}
	if p.Answer != nil {
		n.Answer = *p.Answer
	}
	if p.ParentID != nil {
		n.ParentID = *p.ParentID
	}
}

// IsEmpty reports whether applying the patch would change nothing.
func (p NodePatch) IsEmpty() bool {
	return p.Question == nil && p.Answer == nil && p.ParentID == nil && !p.ClearQuestion
}

// NodeFlags is the presentation overlay for one node. It is never persisted.
type NodeFlags struct {
	Generating        bool `json:"isGenerating,omitempty"`
	ShowQuestionInput bool `json:"showQuestionInput,omitempty"`
	ShowEditInput     bool `json:"showEditInput,omitempty"`
}

// IsZero reports whether no flag is set.
func (f NodeFlags) IsZero() bool {
	return !f.Generating && !f.ShowQuestionInput && !f.ShowEditInput
}

// DedupNodes returns nodes with every ID kept only at its first occurrence,
// preserving order, and the number of dropped duplicates. The input slice is
// not modified.
func DedupNodes(nodes []TreeNode) ([]TreeNode, int) {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out, len(nodes) - len(out)
}

// StringPtr returns a pointer to s, for building patches.
func StringPtr(s string) *string {
	return &s
}
