package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run hybrid retrieval and show ranked chunks",
		Long: `Search runs both retrieval legs (vector similarity and keyword
matching), fuses their rankings, and prints the top chunks. Useful for
inspecting what 'ask' would ground its answer on.

Examples:
  docquery search "quarterly revenue 2025"
  docquery search "how does billing work" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			svc, cleanup, err := newService(false)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := svc.Search(cmd.Context(), namespaceFlag, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if resp.Degraded {
				fmt.Fprintln(out, "note: keyword index unavailable, semantic results only")
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			fmt.Fprintf(out, "query type: %s, weights: %.1f semantic / %.1f lexical\n\n",
				resp.Analysis.Type, resp.Analysis.Weights.Semantic, resp.Analysis.Weights.Lexical)
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%d. %s (score %.3f)\n", i+1, r.SourceID, r.Score)
				fmt.Fprintf(out, "   %s\n", snippet(r.Text, 160))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

// snippet returns the first max runes of text on a single line.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
