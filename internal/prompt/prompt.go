// Package prompt reads a role/orchestrator markdown file's YAML-like
// frontmatter (§4.5.1) and renders a resolved prompt template against
// an issue record (§4.5.2), grounded on dag.py's read_prompt_meta/render
// helpers (referenced there but absent from original_source, so the
// substitution rules below are built directly from spec.md's text).
package prompt

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/untoldecay/inshallah/internal/model"
)

// Meta is the parsed frontmatter of an orchestrator/role file: only the
// keys that are present override a caller's prior-tier defaults.
type Meta struct {
	CLI       string `yaml:"cli"`
	Model     string `yaml:"model"`
	Reasoning string `yaml:"reasoning"`
}

// splitFrontmatter separates a leading `---`-delimited YAML block from
// the rest of the document. Returns ("", body) when there is none.
func splitFrontmatter(raw string) (frontmatter, body string) {
	const delim = "---"
	text := raw
	if !strings.HasPrefix(text, delim) {
		return "", raw
	}
	rest := text[len(delim):]
	rest = strings.TrimPrefix(rest, "\n")
	idx := strings.Index(rest, "\n"+delim)
	if idx == -1 {
		return "", raw
	}
	frontmatter = rest[:idx]
	body = strings.TrimPrefix(rest[idx+1+len(delim):], "\n")
	return frontmatter, body
}

// ReadMeta reads path and parses its frontmatter, returning a zero Meta
// (all fields empty) if path doesn't exist or carries no frontmatter.
func ReadMeta(path string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return meta, model.IOError(err)
	}
	fm, _ := splitFrontmatter(string(data))
	if strings.TrimSpace(fm) == "" {
		return meta, nil
	}
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return meta, model.IOError(err)
	}
	return meta, nil
}

// readBody reads path and returns its content with any frontmatter
// stripped, or "" if path does not exist.
func readBody(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", model.IOError(err)
	}
	_, body := splitFrontmatter(string(data))
	return body, nil
}

// promptText is `{{PROMPT}}`'s expansion: the issue title concatenated
// with its body, blank-line-separated when the body is non-empty.
func promptText(issue model.Issue) string {
	if issue.Body == "" {
		return issue.Title
	}
	return issue.Title + "\n\n" + issue.Body
}

// roleCatalog builds `{{ROLES}}`'s expansion: a sorted catalog of every
// file in rolesDir, each entry naming its resolved cli/model/reasoning
// (or "default config" when absent) and its first non-blank body line
// as a blockquote.
func roleCatalog(rolesDir string) string {
	entries, err := os.ReadDir(rolesDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n\n")
		}
		path := filepath.Join(rolesDir, name+".md")
		meta, _ := ReadMeta(path)
		body, _ := readBody(path)

		b.WriteString("### " + name + "\n")
		if meta.CLI == "" && meta.Model == "" && meta.Reasoning == "" {
			b.WriteString("default config\n")
		} else {
			b.WriteString("cli=" + orDefault(meta.CLI, "-") +
				" model=" + orDefault(meta.Model, "-") +
				" reasoning=" + orDefault(meta.Reasoning, "-") + "\n")
		}
		if first := firstNonBlankLine(body); first != "" {
			b.WriteString("> " + first)
		}
	}
	return b.String()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func firstNonBlankLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// Render renders the prompt template at templatePath against issue,
// substituting `{{PROMPT}}`/`{{ROLES}}`. repoRoot is used to locate
// `.inshallah/roles/` for the roles catalog; an empty repoRoot expands
// `{{ROLES}}` to the empty string. If templatePath doesn't exist (or is
// empty), the rendered prompt falls back to the issue's title optionally
// followed by its body — the caller is responsible for appending the
// fixed "## Inshallah Context" trailer (dagrunner does this, since it
// alone knows root_id).
func Render(templatePath string, issue model.Issue, repoRoot string) (string, error) {
	if templatePath == "" {
		return promptText(issue), nil
	}
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return promptText(issue), nil
		}
		return "", model.IOError(err)
	}
	_, body := splitFrontmatter(string(data))

	rendered := strings.ReplaceAll(body, "{{PROMPT}}", promptText(issue))
	roles := ""
	if repoRoot != "" {
		roles = roleCatalog(filepath.Join(repoRoot, ".inshallah", "roles"))
	}
	rendered = strings.ReplaceAll(rendered, "{{ROLES}}", roles)
	return rendered, nil
}
