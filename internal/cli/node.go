package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

func newNodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Add, edit, and remove nodes of the current tree",
	}
	cmd.AddCommand(
		newNodeAddCmd(a),
		newNodeUpdateCmd(a),
		newNodeDeleteCmd(a),
		newNodeClearCmd(a),
		newNodeChildrenCmd(a),
	)
	return cmd
}

func newNodeAddCmd(a *app) *cobra.Command {
	var node types.TreeNode
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a node under a parent",
		Long: "Add a node to the current tree. Without --parent the node is the root\n" +
			"node and takes the ID \"root\" unless --id is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			if node.ParentID == "" && node.ID == "" {
				node.ID = types.RootID
			}
			added, err := a.svc.Handlers(treeID).OnAddNodes(ctx, []types.TreeNode{node})
			if err != nil {
				return err
			}
			return a.emit(cmd, added[0], func(w io.Writer) {
				fmt.Fprintln(w, added[0].ID)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&node.ID, "id", "", "node ID (default: generated)")
	f.StringVarP(&node.ParentID, "parent", "p", "", "parent node ID")
	f.StringVarP(&node.Question, "question", "q", "", "question text")
	f.StringVarP(&node.Answer, "answer", "a", "", "answer text")
	return cmd
}

func newNodeUpdateCmd(a *app) *cobra.Command {
	var question, answer, parent string
	cmd := &cobra.Command{
		Use:   "update <node-id>",
		Short: "Change the question, answer, or parent of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			var patch types.NodePatch
			if cmd.Flags().Changed("question") {
				patch.Question = types.StringPtr(question)
			}
			if cmd.Flags().Changed("answer") {
				patch.Answer = types.StringPtr(answer)
			}
			if cmd.Flags().Changed("parent") {
				patch.ParentID = types.StringPtr(parent)
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass --question, --answer, or --parent")
			}
			ok, err := a.svc.UpdateNode(ctx, treeID, args[0], patch)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("node %s: %w", args[0], types.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&question, "question", "q", "", "new question text")
	f.StringVarP(&answer, "answer", "a", "", "new answer text")
	f.StringVarP(&parent, "parent", "p", "", "new parent node ID")
	return cmd
}

func newNodeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <node-id>",
		Short: "Delete a node and all of its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			removed, err := a.svc.DeleteNode(ctx, treeID, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]int{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed %d node(s)\n", removed)
			})
		},
	}
}

func newNodeClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <node-id>",
		Short: "Remove the question from a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			if err := a.svc.Handlers(treeID).OnClearQuestion(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared question of %s\n", args[0])
			return nil
		},
	}
}

func newNodeChildrenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "children [node-id]",
		Short: "List the direct children of a node (default: root)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			parent := types.RootID
			if len(args) > 0 {
				parent = args[0]
			}
			kids, err := a.svc.GetChildren(ctx, treeID, parent)
			if err != nil {
				return err
			}
			return a.emit(cmd, kids, func(w io.Writer) {
				for _, n := range kids {
					writeNode(w, n, 0)
				}
			})
		},
	}
}
