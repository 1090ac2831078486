package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/applog"
	"github.com/untoldecay/inshallah/internal/config"
	"github.com/untoldecay/inshallah/internal/eventlog"
	"github.com/untoldecay/inshallah/internal/forumstore"
	"github.com/untoldecay/inshallah/internal/issuestore"
	"github.com/untoldecay/inshallah/internal/repo"
	"github.com/untoldecay/inshallah/internal/sink"
	"github.com/untoldecay/inshallah/internal/sink/plain"
	"github.com/untoldecay/inshallah/internal/sink/terminal"
)

var (
	flagPretty   bool
	flagJSON     bool
	flagIdentity string
)

var rootCmd = &cobra.Command{
	Use:           "inshallah",
	Short:         "Drive a recursively-decomposed tree of issues through coding-agent CLIs",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Initialize()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "indent JSON output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON")
	rootCmd.PersistentFlags().StringVar(&flagIdentity, "identity", "", "override the actor identity used for forum/event authorship")
}

// app bundles the constructed stores and output sink a command needs,
// mirroring cli.py's per-command `_issues_store()`/`_forum_store()`
// helpers but resolved once per invocation.
type app struct {
	Root   string
	Layout repo.Layout
	Events *eventlog.EventLog
	Issues *issuestore.Store
	Forum  *forumstore.Store
	Sink   sink.Sink
	Logger *slog.Logger
}

// newApp resolves the repo root, ensures .inshallah/ exists, and wires
// the stores and an output sink chosen by TTY detection (spec §6).
func newApp() (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root := repo.FindRoot(cwd)
	layout := repo.New(root)
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	events := eventlog.New(layout.EventsPath())
	issues := issuestore.New(layout.IssuesPath(), events)
	forum := forumstore.New(layout.ForumPath(), events)

	logger := applog.New(applog.Options{
		Dir:        config.GetString("log.dir"),
		MaxSizeMB:  config.GetInt("log.max-size-mb"),
		MaxBackups: config.GetInt("log.max-backups"),
	})
	logger = logger.With("component", "cli", "identity", config.GetIdentity(flagIdentity))

	var s sink.Sink
	if flagJSON || !plain.IsTerminal() {
		s = plain.New(os.Stdout)
	} else {
		s = terminal.NewStdout()
	}

	return &app{Root: root, Layout: layout, Events: events, Issues: issues, Forum: forum, Sink: s, Logger: logger}, nil
}

// identity resolves the actor identity for commands that author forum
// posts or events, per config.GetIdentity's flag > config > git > hostname chain.
func (a *app) identity() string {
	return config.GetIdentity(flagIdentity)
}

// printJSON writes v to stdout as JSON, indented when --pretty is set,
// matching cli.py's `_output`.
func printJSON(w io.Writer, v any) error {
	return printJSONPretty(w, v, flagPretty)
}

func printError(msg string) error {
	_ = printJSON(os.Stdout, map[string]string{"error": msg})
	return fmt.Errorf("%s", msg)
}
