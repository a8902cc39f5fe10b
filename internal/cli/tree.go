package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

func newTreeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Create, list, and manage trees",
	}
	cmd.AddCommand(
		newTreeCreateCmd(a),
		newTreeListCmd(a),
		newTreeShowCmd(a),
		newTreeRenameCmd(a),
		newTreeDeleteCmd(a),
		newTreeUseCmd(a),
	)
	return cmd
}

func newTreeCreateCmd(a *app) *cobra.Command {
	var question string
	var use bool
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a tree, optionally with a root question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.svc.CreateTree(ctx, args[0], question)
			if err != nil {
				return err
			}
			if use {
				if err := a.local.SetCurrentTree(ctx, t.ID); err != nil {
					return err
				}
			}
			return a.emit(cmd, t, func(w io.Writer) {
				fmt.Fprintln(w, t.ID)
			})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "initial question stored on the root node")
	cmd.Flags().BoolVar(&use, "use", true, "make the new tree the current tree")
	return cmd
}

func newTreeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List trees, most recently modified first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			trees, err := a.svc.ListTrees(ctx)
			if err != nil {
				return err
			}
			current, _, err := a.local.CurrentTree(ctx)
			if err != nil {
				return err
			}
			return a.emit(cmd, trees, func(w io.Writer) {
				if len(trees) == 0 {
					fmt.Fprintln(w, "No trees.")
					return
				}
				for _, t := range trees {
					mark := " "
					if t.ID == current {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %s  %s  %s\n", mark, t.ID, t.LastModified.Local().Format(time.DateTime), t.Title)
				}
			})
		},
	}
}

// treeView is the JSON shape of "tree show".
type treeView struct {
	Tree  types.TreeData   `json:"tree"`
	Nodes []types.TreeNode `json:"nodes"`
}

func newTreeShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [tree-id]",
		Short: "Show a tree as an outline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := a.treeArg(cmd, args)
			if err != nil {
				return err
			}
			t, err := a.svc.GetTree(ctx, id)
			if err != nil {
				return err
			}
			nodes, err := a.svc.GetNodes(ctx, id)
			if err != nil {
				return err
			}
			return a.emit(cmd, treeView{Tree: t, Nodes: nodes}, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", t.Title, t.ID)
				renderOutline(w, nodes)
			})
		},
	}
}

func newTreeRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <tree-id> <title>",
		Short: "Change a tree's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.UpdateTree(cmd.Context(), args[0], types.TreePatch{Title: types.StringPtr(args[1])}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s\n", args[0])
			return nil
		},
	}
}

func newTreeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tree-id>",
		Short: "Delete a tree and all of its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			if err := a.svc.DeleteTree(ctx, id); err != nil {
				return err
			}
			current, ok, err := a.local.CurrentTree(ctx)
			if err != nil {
				return err
			}
			if ok && current == id {
				if err := a.local.ClearCurrentTree(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
}

func newTreeUseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <tree-id>",
		Short: "Select the tree that other commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.svc.GetTree(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.local.SetCurrentTree(ctx, t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using %s (%s)\n", t.Title, t.ID)
			return nil
		},
	}
}

// treeArg returns the tree named on the command line, or the current tree.
func (a *app) treeArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return a.currentTree(cmd.Context())
}

// renderOutline prints nodes depth first from the root, then any nodes the
// walk did not reach.
func renderOutline(w io.Writer, nodes []types.TreeNode) {
	children := make(map[string][]types.TreeNode)
	for _, n := range nodes {
		if n.ParentID != "" {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}

	type frame struct {
		node  types.TreeNode
		depth int
	}
	seen := make(map[string]bool)
	var stack []frame
	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].ParentID == "" {
			stack = append(stack, frame{node: nodes[i]})
		}
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[f.node.ID] {
			continue
		}
		seen[f.node.ID] = true
		writeNode(w, f.node, f.depth)
		kids := children[f.node.ID]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: kids[i], depth: f.depth + 1})
		}
	}

	var unreached []types.TreeNode
	for _, n := range nodes {
		if !seen[n.ID] {
			unreached = append(unreached, n)
			seen[n.ID] = true
		}
	}
	if len(unreached) > 0 {
		fmt.Fprintln(w, "Unreachable:")
		for _, n := range unreached {
			writeNode(w, n, 1)
		}
	}
}

func writeNode(w io.Writer, n types.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s- [%s]", indent, n.ID)
	if n.Answer != "" {
		fmt.Fprintf(w, " %s", n.Answer)
	}
	if n.Question != "" {
		fmt.Fprintf(w, " Q: %s", n.Question)
	}
	fmt.Fprintln(w)
}
