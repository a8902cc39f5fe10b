package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/internal/cleanup"
)

func newCleanupCmd(a *app) *cobra.Command {
	var summaryOnly bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Scrub legacy fields and invalid records from local storage",
		Long: "Rewrite local node records without presentation fields, remove\n" +
			"records that cannot be trees, prune tree metadata that has no nodes,\n" +
			"and normalize the draft lists. Remote storage is not touched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := cleanup.New(a.local.KV(), a.logger)

			if !summaryOnly {
				rep, _, err := s.RunOnce(ctx)
				if err != nil {
					return err
				}
				if err := a.emit(cmd, rep, func(w io.Writer) { writeReport(w, rep) }); err != nil {
					return err
				}
			}

			sum, err := s.Summary(ctx)
			if err != nil {
				return err
			}
			if summaryOnly {
				return a.emit(cmd, sum, func(w io.Writer) { writeSummary(w, sum) })
			}
			if !a.flags.jsonMode {
				writeSummary(cmd.OutOrStdout(), sum)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "only report what local storage holds")
	return cmd
}

func writeReport(w io.Writer, rep cleanup.Report) {
	fmt.Fprintf(w, "Node records scanned:   %d\n", rep.TreeRecords)
	fmt.Fprintf(w, "Nodes cleaned:          %d\n", rep.NodesCleaned)
	fmt.Fprintf(w, "Invalid nodes dropped:  %d\n", rep.ElementsDropped)
	fmt.Fprintf(w, "Records removed:        %d\n", rep.RecordsRemoved)
	fmt.Fprintf(w, "Metadata kept/removed:  %d/%d\n", rep.MetadataKept, rep.MetadataRemoved)

	keys := make([]string, 0, len(rep.Auxiliary))
	for k := range rep.Auxiliary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		aux := rep.Auxiliary[k]
		fmt.Fprintf(w, "%-23s %d kept, %d dropped\n", k+":", aux.Kept, aux.Dropped)
	}
	if rep.Failures > 0 {
		fmt.Fprintf(w, "Failures:               %d (see log)\n", rep.Failures)
	}
}

func writeSummary(w io.Writer, sum cleanup.Summary) {
	fmt.Fprintf(w, "Stored items: %d (trees %d, metadata %d, drafts %d, stories %d)\n",
		sum.TotalItems, sum.TreeDataCount, sum.TreeMetadataCount, sum.DraftCount, sum.StoryCount)
}
