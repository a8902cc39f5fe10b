package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/internal/generate"
	"github.com/mesh-intelligence/storytree/internal/tree"
)

func newExtendCmd(a *app) *cobra.Command {
	var (
		count    int
		length   string
		language string
	)
	cmd := &cobra.Command{
		Use:   "extend <node-id>",
		Short: "Generate continuations of a node and attach them as children",
		Long: "Ask the configured generator for continuations of a node's question,\n" +
			"given the transcript leading to it, and add each as a child node.\n" +
			"Count, length, and language default to the generator section of\n" +
			"config.yaml.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			treeID, err := a.currentTree(ctx)
			if err != nil {
				return err
			}
			gen := a.cfg.Generator
			if !cmd.Flags().Changed("count") {
				count = gen.Count
			}
			if length == "" {
				length = gen.Length
			}
			if language == "" {
				language = gen.Language
			}

			added, err := a.svc.Extend(ctx, treeID, args[0], count, tree.ExtendOptions{
				Length:   generate.Length(length),
				Language: language,
			})
			if err != nil {
				return err
			}
			return a.emit(cmd, added, func(w io.Writer) {
				fmt.Fprintf(w, "Added %d continuation(s)\n", len(added))
				for _, n := range added {
					writeNode(w, n, 1)
				}
			})
		},
	}
	f := cmd.Flags()
	f.IntVarP(&count, "count", "n", 0, "number of continuations")
	f.StringVar(&length, "length", "", "answer length: short, medium, or long")
	f.StringVar(&language, "language", "", "answer language code, e.g. en or fr")
	return cmd
}
