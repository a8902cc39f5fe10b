package types

// Issue kinds reported by tree structure validation.
const (
	IssueMissingRoot   = "missing_root"
	IssueRootHasParent = "root_has_parent"
	IssueOrphan        = "orphan"
	IssueCycle         = "cycle"
)

// Issue is one structural violation found in a tree. Violations are data,
// not errors: callers decide how to remediate.
type Issue struct {
	Kind    string `json:"kind"`
	NodeID  string `json:"nodeId,omitempty"`
	Message string `json:"message"`
}

// Validation is the result of a tree structure check.
type Validation struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Messages returns the human-readable issue messages in report order.
func (v Validation) Messages() []string {
	out := make([]string, len(v.Issues))
	for i, is := range v.Issues {
		out[i] = is.Message
	}
	return out
}
