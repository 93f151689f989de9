package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docquery/docquery/internal/index"
)

func newSyncCmd() *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index new documents and custom chunks",
		Long: `Sync indexes every supported file in the namespace's docs directory
that is not yet recorded in the manifest, plus new custom chunk files.
Already-indexed sources are never reprocessed; running sync twice in a
row does no embedding work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			if checkOnly {
				pending, err := svc.HasPendingChanges(namespaceFlag, nil)
				if err != nil {
					return err
				}
				if pending {
					fmt.Fprintln(cmd.OutOrStdout(), "pending changes")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "up to date")
				}
				return nil
			}

			report, err := svc.Sync(cmd.Context(), namespaceFlag, nil)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Report whether a sync would do work, without syncing")
	return cmd
}

func printReport(cmd *cobra.Command, report *index.Report) {
	out := cmd.OutOrStdout()

	if len(report.Sources) == 0 && report.NewCustomChunks == 0 {
		fmt.Fprintln(out, "up to date")
		return
	}

	for _, src := range report.Sources {
		switch src.Status {
		case index.StatusSkipped:
			fmt.Fprintf(out, "  skip  %s (%s)\n", src.ID, src.Reason)
		case index.StatusOCR:
			fmt.Fprintf(out, "  ocr   %s (%d chunks)\n", src.ID, src.Chunks)
		default:
			fmt.Fprintf(out, "  index %s (%d chunks)\n", src.ID, src.Chunks)
		}
	}
	if report.NewCustomChunks > 0 {
		fmt.Fprintf(out, "  custom chunks: %d\n", report.NewCustomChunks)
	}
	fmt.Fprintf(out, "indexed %d/%d sources, %d chunks in %s\n",
		report.Indexed(), len(report.Sources), report.IndexedChunks,
		report.Duration.Round(time.Millisecond))
}
