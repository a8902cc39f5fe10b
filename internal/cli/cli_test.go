package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storytree/internal/tree"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// harness runs commands against one config and data directory.
type harness struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STORYTREE_GENERATOR_API_KEY", "")
	t.Setenv("STORYTREE_BACKEND", "")
	return &harness{t: t, configDir: t.TempDir(), dataDir: t.TempDir()}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root, a := newRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config-dir", h.configDir, "--data-dir", h.dataDir}, args...))
	err := root.ExecuteContext(context.Background())
	require.NoError(h.t, a.close())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "storytree %s", strings.Join(args, " "))
	return out
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("version")
	assert.Contains(t, out, "storytree v"+Version)
}

func TestInit_WritesConfigOnce(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("init", "--engine", "badger")
	assert.Contains(t, out, "Wrote")
	assert.Contains(t, out, "engine badger")
	_, err := os.Stat(filepath.Join(h.configDir, "config.yaml"))
	require.NoError(t, err)

	out = h.mustRun("init")
	assert.NotContains(t, out, "Wrote")
	assert.Contains(t, out, "engine badger", "existing config is kept")
}

func TestTreeAndNodeFlow(t *testing.T) {
	h := newHarness(t)

	id := strings.TrimSpace(h.mustRun("tree", "create", "Adventure", "-q", "Where do we start?"))
	require.NotEmpty(t, id)

	out := h.mustRun("tree", "list")
	assert.Contains(t, out, "* "+id)
	assert.Contains(t, out, "Adventure")

	a := strings.TrimSpace(h.mustRun("node", "add", "-p", types.RootID, "-a", "In a forest.", "-q", "What then?"))
	b := strings.TrimSpace(h.mustRun("node", "add", "-p", a, "-a", "A wolf appears."))

	out = h.mustRun("context", b)
	assert.Equal(t, "Q: Where do we start?\nQ: What then?\nA: In a forest.\nA: A wolf appears.\n", out)

	out = h.mustRun("thread", b)
	assert.Equal(t, "In a forest.\n\nA wolf appears.\n", out)

	out = h.mustRun("--json", "path", b)
	var path []types.TreeNode
	require.NoError(t, json.Unmarshal([]byte(out), &path))
	require.Len(t, path, 3)
	assert.Equal(t, types.RootID, path[0].ID)
	assert.Equal(t, b, path[2].ID)

	h.mustRun("node", "update", a, "-a", "In a dark forest.")
	h.mustRun("node", "clear", a)
	out = h.mustRun("context", b)
	assert.Equal(t, "Q: Where do we start?\nA: In a dark forest.\nA: A wolf appears.\n", out)

	out = h.mustRun("tree", "show")
	assert.Contains(t, out, "Adventure ("+id+")")
	assert.Contains(t, out, "    - ["+b+"] A wolf appears.")

	out = h.mustRun("validate")
	assert.Contains(t, out, "valid")

	out = h.mustRun("node", "delete", a)
	assert.Contains(t, out, "Removed 2 node(s)")

	out = h.mustRun("--json", "node", "children")
	assert.JSONEq(t, `[]`, out)
}

func TestNodeUpdate_Errors(t *testing.T) {
	h := newHarness(t)
	h.mustRun("tree", "create", "T", "-q", "Q")

	_, err := h.run("node", "update", types.RootID)
	assert.ErrorContains(t, err, "nothing to update")

	_, err = h.run("node", "update", "ghost", "-a", "x")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestNoCurrentTree(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("validate")
	assert.ErrorIs(t, err, errNoTree)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestTreeUseRenameDelete(t *testing.T) {
	h := newHarness(t)
	first := strings.TrimSpace(h.mustRun("tree", "create", "First"))
	second := strings.TrimSpace(h.mustRun("tree", "create", "Second"))

	out := h.mustRun("tree", "use", first)
	assert.Contains(t, out, "Using First")

	h.mustRun("tree", "rename", second, "Renamed")
	out = h.mustRun("--json", "tree", "list")
	var trees []types.TreeData
	require.NoError(t, json.Unmarshal([]byte(out), &trees))
	require.Len(t, trees, 2)
	assert.Equal(t, second, trees[0].ID)
	assert.Equal(t, "Renamed", trees[0].Title)

	h.mustRun("tree", "delete", first)
	_, err := h.run("validate")
	assert.ErrorIs(t, err, errNoTree, "deleting the current tree clears the selection")

	_, err = h.run("tree", "use", "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestValidate_ReportsIssues(t *testing.T) {
	h := newHarness(t)
	h.mustRun("tree", "create", "Broken")
	h.mustRun("node", "add", "--id", "x", "-p", "ghost", "-a", "lost")

	out, err := h.run("validate")
	require.Error(t, err)
	assert.Contains(t, out, "Missing root node")
	assert.Contains(t, out, "Orphaned node: x (parent ghost not found)")
}

func TestExtend_WithoutGenerator(t *testing.T) {
	h := newHarness(t)
	h.mustRun("tree", "create", "T", "-q", "Q")

	_, err := h.run("extend", types.RootID)
	assert.ErrorIs(t, err, tree.ErrNoGenerator)
	assert.Equal(t, exitSysError, exitCode(err))
}

func TestExportImport(t *testing.T) {
	src := newHarness(t)
	id := strings.TrimSpace(src.mustRun("tree", "create", "Saved", "-q", "Q"))
	src.mustRun("node", "add", "-p", types.RootID, "-a", "A")

	file := filepath.Join(t.TempDir(), "trees.jsonl")
	out := src.mustRun("export", file)
	assert.Contains(t, out, "Exported 1 tree(s)")

	dst := newHarness(t)
	out = dst.mustRun("--json", "import", file)
	assert.JSONEq(t, `{"imported":1,"skipped":0}`, out)

	out = dst.mustRun("--tree", id, "--json", "tree", "show")
	var view treeView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Saved", view.Tree.Title)
	assert.Len(t, view.Nodes, 2)
}

func TestCleanup(t *testing.T) {
	h := newHarness(t)
	h.mustRun("tree", "create", "Keep", "-q", "Q")
	h.mustRun("tree", "create", "Empty")

	out := h.mustRun("cleanup")
	assert.Contains(t, out, "Metadata kept/removed:  1/1")
	assert.Contains(t, out, "Stored items:")

	out = h.mustRun("--json", "cleanup", "--summary")
	var sum map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum["treeDataCount"])
}

func TestRenderOutline_CycleAndOrphans(t *testing.T) {
	nodes := []types.TreeNode{
		{ID: types.RootID, Question: "Q"},
		{ID: "a", ParentID: types.RootID, Answer: "A"},
		{ID: "x", ParentID: "y"},
		{ID: "y", ParentID: "x"},
	}
	var buf bytes.Buffer
	renderOutline(&buf, nodes)
	assert.Equal(t, "- [root] Q: Q\n  - [a] A\nUnreachable:\n  - [x]\n  - [y]\n", buf.String())
}

func TestImportText(t *testing.T) {
	h := newHarness(t)
	file := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(file, []byte("The ship left port. Storm clouds gathered! Land?"), 0o644))

	out := h.mustRun("--json", "import-text", file, "--split", "sentences", "--preview")
	var p tree.TextPreview
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 4, p.NodeCount)

	out = h.mustRun("--json", "import-text", file, "--split", "sentences", "-t", "Voyage")
	var view treeView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Voyage", view.Tree.Title)
	require.Len(t, view.Nodes, 4)

	out = h.mustRun("thread", view.Nodes[3].ID)
	assert.Equal(t, "The ship left port\n\nStorm clouds gathered\n\nLand\n", out)

	out = h.mustRun("context", view.Nodes[1].ID)
	assert.Equal(t, "Q: Voyage\nA: The ship left port\n", out, "imported tree is current")
}
