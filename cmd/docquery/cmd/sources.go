package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage indexed sources",
	}
	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesDeleteCmd())
	cmd.AddCommand(newSourcesPurgeCmd())
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed sources and their chunk counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			sources, err := svc.Sources(cmd.Context(), namespaceFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintln(out, "no indexed sources")
				return nil
			}

			ids := make([]string, 0, len(sources))
			for id := range sources {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "  %s (%d chunks)\n", id, sources[id])
			}
			return nil
		},
	}
}

func newSourcesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <source-id>",
		Short: "Delete a source and all chunks derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.DeleteSource(cmd.Context(), namespaceFlag, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newSourcesPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete everything the namespace owns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("purge removes all documents and indexes for namespace %q; rerun with --yes", namespaceFlag)
			}

			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.PurgeNamespace(namespaceFlag); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged namespace %s\n", namespaceFlag)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the purge")
	return cmd
}
