package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/jsonlfile"
	"github.com/untoldecay/inshallah/internal/model"
)

var (
	eventsType   string
	eventsIssue  string
	eventsRun    string
	eventsTail   int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read the append-only events.jsonl audit stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		rows, err := jsonlfile.ReadLines[model.Event](a.Layout.EventsPath())
		if err != nil {
			return err
		}

		filtered := rows[:0:0]
		for _, ev := range rows {
			if eventsType != "" && ev.Type != eventsType {
				continue
			}
			if eventsIssue != "" && ev.IssueID != eventsIssue {
				continue
			}
			if eventsRun != "" && ev.RunID != eventsRun {
				continue
			}
			filtered = append(filtered, ev)
		}
		if eventsTail > 0 && len(filtered) > eventsTail {
			filtered = filtered[len(filtered)-eventsTail:]
		}

		if flagJSON {
			return printJSON(os.Stdout, filtered)
		}
		rows2 := make([][]string, 0, len(filtered))
		for _, ev := range filtered {
			rows2 = append(rows2, []string{ev.Type, ev.IssueID, ev.RunID})
		}
		a.Sink.Table("Events", rows2)
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type")
	eventsCmd.Flags().StringVar(&eventsIssue, "issue", "", "filter by issue id")
	eventsCmd.Flags().StringVar(&eventsRun, "run", "", "filter by run id")
	eventsCmd.Flags().IntVar(&eventsTail, "tail", 50, "show only the last N matching events (0 = all)")
	rootCmd.AddCommand(eventsCmd)
}
