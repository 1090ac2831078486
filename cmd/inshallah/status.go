package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/issuestore"
	"github.com/untoldecay/inshallah/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize open root issues, ready work, and recent forum activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		rootTag := "node:root"
		roots, err := a.Issues.List(ctx, issuestore.ListFilter{Tag: rootTag})
		if err != nil {
			return err
		}
		openStatus := model.StatusOpen
		open, err := a.Issues.List(ctx, issuestore.ListFilter{Status: &openStatus})
		if err != nil {
			return err
		}
		ready, err := a.Issues.Ready(ctx, issuestore.ReadyFilter{Tags: []string{"node:agent"}})
		if err != nil {
			return err
		}
		topics, err := a.Forum.Topics(ctx, "issue:")
		if err != nil {
			return err
		}
		if len(topics) > 10 {
			topics = topics[:10]
		}
		readyPreview := ready
		if len(readyPreview) > 10 {
			readyPreview = readyPreview[:10]
		}

		if flagJSON {
			return printJSON(os.Stdout, map[string]any{
				"repo_root":     a.Root,
				"roots":         roots,
				"open_count":    len(open),
				"ready_count":   len(ready),
				"ready":         readyPreview,
				"recent_topics": topics,
			})
		}

		a.Sink.Panel("inshallah status", fmt.Sprintf("Repo: %s", a.Root), "cyan")
		a.Sink.Table("", [][]string{
			{"Root issues", fmt.Sprintf("%d", len(roots))},
			{"Open issues", fmt.Sprintf("%d", len(open))},
			{"Ready issues", fmt.Sprintf("%d", len(ready))},
		})
		if len(readyPreview) > 0 {
			rows := make([][]string, 0, len(readyPreview))
			for _, issue := range readyPreview {
				rows = append(rows, []string{issue.ID, fmt.Sprintf("%d", issue.Priority), issue.Title})
			}
			a.Sink.Table("Ready Issues", rows)
		}
		if len(topics) > 0 {
			rows := make([][]string, 0, len(topics))
			for _, topic := range topics {
				rows = append(rows, []string{topic.Topic, fmt.Sprintf("%d", topic.Messages)})
			}
			a.Sink.Table("Recent Issue Topics", rows)
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .inshallah/ state directory with its logs/ and roles/ subdirectories (writes no prompt templates)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.Sink.Panel("inshallah init", fmt.Sprintf("Initialized .inshallah/ in %s", a.Root), "green")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, initCmd)
}
