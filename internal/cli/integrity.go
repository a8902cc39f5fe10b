package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newDedupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Drop nodes whose ID repeats an earlier node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			dropped, err := a.svc.DeduplicateNodes(ctx, treeID)
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]int{"dropped": dropped}, func(w io.Writer) {
				fmt.Fprintf(w, "Dropped %d duplicate node(s)\n", dropped)
			})
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Report a missing root, orphaned nodes, and cycles",
		Long: "Check the structure of the current tree. Problems are reported, not\n" +
			"repaired; the command fails when any are found.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			v, err := a.svc.ValidateTreeStructure(ctx, treeID)
			if err != nil {
				return err
			}
			if err := a.emit(cmd, v, func(w io.Writer) {
				if v.Valid {
					fmt.Fprintln(w, "Tree structure is valid.")
					return
				}
				for _, msg := range v.Messages() {
					fmt.Fprintln(w, msg)
				}
			}); err != nil {
				return err
			}
			if !v.Valid {
				return fmt.Errorf("tree %s has %d structural issue(s)", treeID, len(v.Issues))
			}
			return nil
		},
	}
}
