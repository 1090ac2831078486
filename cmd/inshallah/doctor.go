package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/backend"
)

type doctorCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	Note string `json:"note,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Sanity-check backend CLI availability, repo layout, and identity resolution",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		var checks []doctorCheck

		names := backend.Names()
		sort.Strings(names)
		for _, name := range names {
			if _, err := exec.LookPath(name); err != nil {
				checks = append(checks, doctorCheck{Name: "backend:" + name, OK: false, Note: "not found on PATH"})
			} else {
				checks = append(checks, doctorCheck{Name: "backend:" + name, OK: true})
			}
		}

		for _, p := range []string{a.Layout.IssuesPath(), a.Layout.ForumPath(), a.Layout.EventsPath()} {
			if _, err := os.Stat(p); err != nil && !os.IsNotExist(err) {
				checks = append(checks, doctorCheck{Name: "layout:" + p, OK: false, Note: err.Error()})
			} else {
				checks = append(checks, doctorCheck{Name: "layout:" + p, OK: true})
			}
		}

		identity := a.identity()
		checks = append(checks, doctorCheck{Name: "identity", OK: identity != "", Note: identity})

		if flagJSON {
			return printJSON(os.Stdout, checks)
		}
		rows := make([][]string, 0, len(checks))
		allOK := true
		for _, c := range checks {
			status := "ok"
			if !c.OK {
				status = "FAIL"
				allOK = false
			}
			rows = append(rows, []string{c.Name, status, c.Note})
		}
		a.Sink.Table("Doctor", rows)
		if !allOK {
			return fmt.Errorf("one or more doctor checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
