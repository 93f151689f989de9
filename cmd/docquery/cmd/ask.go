package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docquery/docquery/internal/answer"
	"github.com/docquery/docquery/internal/service"
)

func newAskCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed documents",
		Long: `Ask retrieves the most relevant chunks for the question and asks the
configured chat model to answer strictly from them, printing the answer
with its sources.

With --interactive, ask starts a chat loop that carries the recent
conversation (last 9 exchanges) into each request.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := newService(true)
			if err != nil {
				return err
			}
			defer cleanup()

			if interactive {
				return runChatLoop(cmd, svc)
			}
			if len(args) == 0 {
				return fmt.Errorf("provide a question or use --interactive")
			}

			got, err := svc.Retrieve(cmd.Context(), namespaceFlag, strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			printAnswer(cmd, got)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start a chat loop")
	return cmd
}

func runChatLoop(cmd *cobra.Command, svc *service.Service) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "chat mode; empty line or Ctrl-D exits")

	var history []answer.Exchange
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		got, err := svc.Retrieve(cmd.Context(), namespaceFlag, question, history)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printAnswer(cmd, got)
		history = append(history, answer.Exchange{Question: question, Answer: got.Text})
	}
	return scanner.Err()
}

func printAnswer(cmd *cobra.Command, got *service.Answer) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, got.Text)
	if got.Degraded {
		fmt.Fprintln(out, "\nnote: keyword index unavailable, answer grounded on semantic results only")
	}
	if len(got.Sources) == 0 {
		return
	}

	fmt.Fprintln(out, "\nSources:")
	for _, src := range got.Sources {
		best := src.Chunks[0].Score
		fmt.Fprintf(out, "  %s (%d chunks, best score %.3f)\n", src.ID, len(src.Chunks), best)
	}
}
