package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/clearpath/internal/rag"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		conversationID string
		stream         bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.loadIndex(ctx, false); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			question := strings.Join(args, " ")
			var ans *rag.Answer
			if stream {
				ans, err = a.engine.AskStream(ctx, question, conversationID, func(tok string) error {
					_, err := io.WriteString(out, tok)
					return err
				})
				fmt.Fprintln(out)
			} else {
				ans, err = a.engine.Ask(ctx, question, conversationID)
				if err == nil {
					fmt.Fprintln(out, ans.Answer)
				}
			}
			if err != nil {
				return err
			}
			printAnswerDetails(out, ans)
			return nil
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Continue an existing conversation")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print tokens as they arrive")
	return cmd
}

func printAnswerDetails(w io.Writer, a *rag.Answer) {
	m := a.Metadata
	fmt.Fprintf(w, "\nmodel: %s (%s), tokens in/out: %d/%d, latency: %dms\n",
		m.ModelUsed, m.Classification, m.Tokens.Input, m.Tokens.Output, m.LatencyMS)
	if len(m.EvaluatorFlags) > 0 {
		fmt.Fprintf(w, "flags: %s\n", strings.Join(m.EvaluatorFlags, ", "))
	}
	for _, s := range a.Sources {
		fmt.Fprintf(w, "source: %s p.%d (%.4f)\n", s.Document, s.Page, s.RelevanceScore)
	}
	fmt.Fprintf(w, "conversation: %s\n", a.ConversationID)
}
