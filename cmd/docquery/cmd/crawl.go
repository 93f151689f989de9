package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCrawlCmd() *cobra.Command {
	var (
		follow    bool
		syncAfter bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Fetch a web page (or site) into the docs directory",
		Long: `Crawl downloads a page into the namespace's docs directory: HTML is
reduced to visible text, PDFs are saved raw. With --follow, same-host
links are walked breadth-first up to the configured page budget.

Fetched pages are indexed by the next sync (or immediately with --sync).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.IngestURL(cmd.Context(), namespaceFlag, args[0], follow)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range report.Fetched {
				fmt.Fprintf(out, "  saved %s\n", id)
			}
			fmt.Fprintf(out, "fetched %d, skipped %d, failed %d\n",
				len(report.Fetched), report.Skipped, report.Failed)

			if syncAfter && len(report.Fetched) > 0 {
				syncReport, err := svc.Sync(cmd.Context(), namespaceFlag, nil)
				if err != nil {
					return err
				}
				printReport(cmd, syncReport)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "Follow same-host links breadth-first")
	cmd.Flags().BoolVar(&syncAfter, "sync", false, "Sync the namespace after fetching")
	return cmd
}
