package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/morezero/chat-worker/pkg/chat"
)

type parseReport struct {
	Messages  []chat.Message          `json:"messages,omitempty"`
	Senders   []string                `json:"senders"`
	Stats     *chat.Statistics        `json:"statistics,omitempty"`
	Keywords  *chat.KeywordAnalysis   `json:"keywords,omitempty"`
	Sentiment *chat.SentimentAnalysis `json:"sentiment,omitempty"`
}

func parseCmd() *cobra.Command {
	var includeSystem, withStats, withSentiment, summaryOnly bool
	var keywords int

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a WhatsApp text export and print the messages as JSON",
		Long: `Parse a WhatsApp "Export chat" text file ("-" reads stdin). Both the bracketed iOS
format and the dashed Android format are understood.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("parse: %w", err)
				}
				defer f.Close()
				in = f
			}

			msgs, err := chat.ParseExport(in, chat.ParseOptions{IncludeSystem: includeSystem})
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}

			report := parseReport{Senders: chat.Senders(msgs)}
			if !summaryOnly {
				report.Messages = msgs
			}
			if withStats {
				report.Stats = chat.CalculateStatistics(msgs)
			}
			if keywords > 0 {
				report.Keywords = chat.ExtractKeywords(msgs, keywords)
			}
			if withSentiment {
				report.Sentiment = chat.AnalyzeSentiment(msgs)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().BoolVar(&includeSystem, "include-system", false, "Keep system notices (group changes, encryption notices)")
	cmd.Flags().BoolVar(&withStats, "stats", false, "Include message statistics")
	cmd.Flags().BoolVar(&withSentiment, "sentiment", false, "Include daily and overall sentiment")
	cmd.Flags().IntVar(&keywords, "keywords", 0, "Include the top N keywords")
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Omit the message list")
	return cmd
}
