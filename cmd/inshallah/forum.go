package main

import (
	"os"

	"github.com/spf13/cobra"
)

var forumCmd = &cobra.Command{
	Use:   "forum",
	Short: "Post to and read from the append-only per-topic forum log",
}

var postAuthor string

var forumPostCmd = &cobra.Command{
	Use:   "post <topic> <body...>",
	Short: "Append a message to a topic",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		author := postAuthor
		if author == "" {
			author = a.identity()
		}
		body := joinArgs(args[1:])
		msg, err := a.Forum.Post(ctx, args[0], body, author)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, msg)
	},
}

var readLimit int

var forumReadCmd = &cobra.Command{
	Use:   "read <topic>",
	Short: "Read the most recent messages on a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		messages, err := a.Forum.Read(ctx, args[0], readLimit)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, messages)
	},
}

var topicsPrefix string

var forumTopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics and their message counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		topics, err := a.Forum.Topics(ctx, topicsPrefix)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, topics)
	},
}

func joinArgs(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

func init() {
	forumPostCmd.Flags().StringVar(&postAuthor, "author", "", "override author (default: resolved identity)")
	forumReadCmd.Flags().IntVar(&readLimit, "limit", 20, "maximum number of messages to return")
	forumTopicsCmd.Flags().StringVar(&topicsPrefix, "prefix", "", "filter topics by prefix")

	forumCmd.AddCommand(forumPostCmd, forumReadCmd, forumTopicsCmd)
	rootCmd.AddCommand(forumCmd)
}
