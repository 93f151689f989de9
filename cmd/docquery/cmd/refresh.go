package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-embed all custom chunks",
		Long: `Refresh clears the custom chunk manifest and re-embeds every file
currently in the custom_chunks directory, regardless of whether it was
indexed before. Use it to repair an index suspected of missing manual
corrections.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.ForceRefreshCustomChunks(cmd.Context(), namespaceFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "re-embedded %d custom chunks\n", report.NewCustomChunks)
			return nil
		},
	}
}
