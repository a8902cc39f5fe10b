package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path <node-id>",
		Short: "Print the nodes from the root down to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			path, err := a.svc.GetNodePath(ctx, treeID, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, path, func(w io.Writer) {
				for depth, n := range path {
					writeNode(w, n, depth)
				}
			})
		},
	}
}

func newContextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "context <node-id>",
		Short: "Print the question and answer transcript leading to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			text, err := a.svc.BuildContext(ctx, treeID, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"context": text}, func(w io.Writer) {
				fmt.Fprintln(w, text)
			})
		},
	}
}

func newThreadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "thread <node-id>",
		Short: "Print the story told by the answers leading to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			text, err := a.svc.BuildStoryThread(ctx, treeID, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"thread": text}, func(w io.Writer) {
				fmt.Fprintln(w, text)
			})
		},
	}
}
