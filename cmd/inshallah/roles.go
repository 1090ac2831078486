package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/prompt"
)

type roleSummary struct {
	Name      string `json:"name"`
	CLI       string `json:"cli,omitempty"`
	Model     string `json:"model,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the role definition files under roles/",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		rolesDir := a.Layout.RolesDir()
		entries, err := os.ReadDir(rolesDir)
		if err != nil {
			if os.IsNotExist(err) {
				return printJSON(os.Stdout, []roleSummary{})
			}
			return err
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
		sort.Strings(names)

		summaries := make([]roleSummary, 0, len(names))
		for _, name := range names {
			path := filepath.Join(rolesDir, name+".md")
			meta, err := prompt.ReadMeta(path)
			if err != nil {
				return err
			}
			data, _ := os.ReadFile(path)
			summaries = append(summaries, roleSummary{
				Name:      name,
				CLI:       meta.CLI,
				Model:     meta.Model,
				Reasoning: meta.Reasoning,
				Summary:   firstNonBlankLine(string(data)),
			})
		}

		if flagJSON {
			return printJSON(os.Stdout, summaries)
		}
		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{s.Name, orDash(s.CLI), orDash(s.Model), orDash(s.Reasoning), s.Summary})
		}
		a.Sink.Table("Roles", rows)
		return nil
	},
}

func firstNonBlankLine(raw string) string {
	body := raw
	if strings.HasPrefix(raw, "---\n") {
		if idx := strings.Index(raw[4:], "\n---"); idx != -1 {
			body = raw[4+idx+4:]
		}
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}
