package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/internal/archive"
	"github.com/mesh-intelligence/storytree/internal/tree"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every tree and its nodes to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := archive.ExportFile(cmd.Context(), a.store, args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]int{"exported": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Exported %d tree(s) to %s\n", n, args[0])
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load trees from a JSONL file written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := archive.ImportFile(cmd.Context(), a.store, args[0], a.logger)
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d tree(s), skipped %d line(s)\n", res.Imported, res.Skipped)
			})
		},
	}
}

func newImportTextCmd(a *app) *cobra.Command {
	var (
		opts    tree.TextOptions
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "import-text <file>",
		Short: "Build a tree from plain text, one answer node per segment",
		Long: "Split a text file into segments and build a new tree: the root asks\n" +
			"the title, and each segment becomes an answer under the one before.\n" +
			"Use - to read standard input. The new tree becomes the current tree.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := readText(cmd, args[0])
			if err != nil {
				return err
			}

			if preview {
				p := tree.PreviewText(text, opts)
				return a.emit(cmd, p, func(w io.Writer) {
					fmt.Fprintf(w, "%d node(s)\n%s\n", p.NodeCount, p.Text)
				})
			}

			t, nodes, err := a.svc.ImportText(ctx, text, opts)
			if err != nil {
				return err
			}
			if err := a.local.SetCurrentTree(ctx, t.ID); err != nil {
				return err
			}
			return a.emit(cmd, treeView{Tree: t, Nodes: nodes}, func(w io.Writer) {
				fmt.Fprintf(w, "Created %s with %d node(s)\n", t.ID, len(nodes))
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.Title, "title", "t", "", "tree title and root question (default \""+tree.DefaultTextTitle+"\")")
	f.StringVar(&opts.Split, "split", tree.SplitParagraphs, "split mode: paragraphs, sentences, or none")
	f.StringVar(&opts.Separator, "separator", "", "custom separator; overrides --split")
	f.BoolVar(&preview, "preview", false, "show the segments without creating a tree")
	return cmd
}

func readText(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
