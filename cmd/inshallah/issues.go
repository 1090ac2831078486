package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/inshallah/internal/dagrunner"
	"github.com/untoldecay/inshallah/internal/issuestore"
	"github.com/untoldecay/inshallah/internal/model"
	"github.com/untoldecay/inshallah/internal/review"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Inspect and mutate the issue DAG",
}

var (
	issueListStatus string
	issueListTag    string
	issueListRoot   string
	issueListLimit  int
)

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues with optional status, tag, and subtree filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		filter := issuestore.ListFilter{Tag: issueListTag}
		if issueListStatus != "" {
			status := model.Status(issueListStatus)
			filter.Status = &status
		}
		issues, err := a.Issues.List(ctx, filter)
		if err != nil {
			return err
		}
		if issueListRoot != "" {
			rootID, err := resolveIssueID(ctx, a.Issues, issueListRoot)
			if err != nil {
				return printError(fmt.Sprintf("issue not found: %s", issueListRoot))
			}
			subtree, err := a.Issues.SubtreeIDs(ctx, rootID)
			if err != nil {
				return err
			}
			inScope := map[string]bool{}
			for _, id := range subtree {
				inScope[id] = true
			}
			filtered := issues[:0:0]
			for _, issue := range issues {
				if inScope[issue.ID] {
					filtered = append(filtered, issue)
				}
			}
			issues = filtered
		}
		if issueListLimit > 0 && len(issues) > issueListLimit {
			issues = issues[len(issues)-issueListLimit:]
		}
		return printJSON(os.Stdout, issues)
	},
}

var issuesGetCmd = &cobra.Command{
	Use:   "get <id-or-prefix>",
	Short: "Fetch a single issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		issue, err := a.Issues.Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, issue)
	},
}

var (
	createBody        string
	createParent      string
	createTags        []string
	createRole        string
	createCLI         string
	createModel       string
	createReasoning   string
	createPromptPath  string
	createPriority    int
	createDeferUntil  string
)

var issuesCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new issue (always tagged node:agent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if createPriority < 1 || createPriority > 5 {
			return printError("priority must be in range 1-5")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		tags := append([]string{}, createTags...)
		if !containsString(tags, "node:agent") {
			tags = append(tags, "node:agent")
		}

		spec, err := buildExecutionSpec(createRole, createCLI, createModel, createReasoning, createPromptPath, createDeferUntil)
		if err != nil {
			return printError(err.Error())
		}

		var parentID string
		if createParent != "" {
			parentID, err = resolveIssueID(ctx, a.Issues, createParent)
			if err != nil {
				return printError(fmt.Sprintf("parent not found: %s", createParent))
			}
		}

		issue, err := a.Issues.Create(ctx, args[0], issuestore.CreateParams{
			Body:          createBody,
			Tags:          tags,
			ExecutionSpec: spec,
			Priority:      createPriority,
		})
		if err != nil {
			return err
		}
		if parentID != "" {
			if err := a.Issues.AddDep(ctx, issue.ID, model.DepParent, parentID); err != nil {
				return err
			}
			issue, err = a.Issues.Get(ctx, issue.ID)
			if err != nil {
				return err
			}
		}
		return printJSON(os.Stdout, issue)
	},
}

var (
	updateTitle              string
	updateBody               string
	updateStatus             string
	updateOutcome            string
	updatePriority           int
	updateAddTags            []string
	updateRemoveTags         []string
	updateRole               string
	updateCLI                string
	updateModel              string
	updateReasoning          string
	updatePromptPath         string
	updateDeferUntil         string
	updateClearExecutionSpec bool
)

var issuesUpdateCmd = &cobra.Command{
	Use:   "update <id-or-prefix>",
	Short: "Patch issue fields and routing metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		issue, err := a.Issues.Get(ctx, id)
		if err != nil {
			return err
		}

		if updatePriority != 0 && (updatePriority < 1 || updatePriority > 5) {
			return printError("priority must be in range 1-5")
		}

		fields := issuestore.UpdateFields{}
		if cmd.Flags().Changed("title") {
			fields.Title = &updateTitle
		}
		if cmd.Flags().Changed("body") {
			fields.Body = &updateBody
		}
		if cmd.Flags().Changed("status") {
			status := model.Status(updateStatus)
			fields.Status = &status
		}
		if cmd.Flags().Changed("outcome") {
			outcome := model.Outcome(updateOutcome)
			fields.Outcome = &outcome
		}
		if updatePriority != 0 {
			fields.Priority = &updatePriority
		}

		if len(updateAddTags) > 0 || len(updateRemoveTags) > 0 {
			tags := append([]string{}, issue.Tags...)
			for _, t := range updateAddTags {
				if !containsString(tags, t) {
					tags = append(tags, t)
				}
			}
			tags = removeStrings(tags, updateRemoveTags)
			fields.Tags = tags
		}

		if updateClearExecutionSpec {
			fields.ExecutionSpec = nil
			cleared := model.ExecutionSpec{}
			fields.ExecutionSpec = &cleared
		} else if updateRole != "" || updateCLI != "" || updateModel != "" || updateReasoning != "" || updatePromptPath != "" || updateDeferUntil != "" {
			spec, err := buildExecutionSpec(updateRole, updateCLI, updateModel, updateReasoning, updatePromptPath, updateDeferUntil)
			if err != nil {
				return printError(err.Error())
			}
			fields.ExecutionSpec = spec
		}

		updated, err := a.Issues.Update(ctx, id, fields)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, updated)
	},
}

var issuesClaimCmd = &cobra.Command{
	Use:   "claim <id-or-prefix>",
	Short: "Mark an open issue in_progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		claimed, err := a.Issues.Claim(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, map[string]any{"id": id, "claimed": claimed})
	},
}

var reopenReason string

var issuesOpenCmd = &cobra.Command{
	Use:   "open <id-or-prefix>",
	Short: "Reopen a closed issue, clearing its outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		issue, err := a.Issues.Reopen(ctx, id, reopenReason)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, issue)
	},
}

var closeOutcome string

var issuesCloseCmd = &cobra.Command{
	Use:   "close <id-or-prefix>",
	Short: "Close an issue with an outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		issue, err := a.Issues.Close(ctx, id, model.Outcome(closeOutcome))
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, issue)
	},
}

var issuesDepCmd = &cobra.Command{
	Use:   "dep <src> <parent|blocks> <dst>",
	Short: "Add a dependency edge on src",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateDep(cmd, args, true)
	},
}

var issuesUndepCmd = &cobra.Command{
	Use:   "undep <src> <parent|blocks> <dst>",
	Short: "Remove a dependency edge from src",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateDep(cmd, args, false)
	},
}

func mutateDep(cmd *cobra.Command, args []string, add bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	src, err := resolveIssueID(ctx, a.Issues, args[0])
	if err != nil {
		return printError(fmt.Sprintf("not found: %s", args[0]))
	}
	dst, err := resolveIssueID(ctx, a.Issues, args[2])
	if err != nil {
		return printError(fmt.Sprintf("not found: %s", args[2]))
	}
	depType := model.DepType(args[1])
	if depType != model.DepParent && depType != model.DepBlocks {
		return printError(fmt.Sprintf("unknown dependency type: %s", args[1]))
	}
	if add {
		if err := a.Issues.AddDep(ctx, src, depType, dst); err != nil {
			return err
		}
	} else {
		if _, err := a.Issues.RemoveDep(ctx, src, depType, dst); err != nil {
			return err
		}
	}
	issue, err := a.Issues.Get(ctx, src)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, issue)
}

var issuesChildrenCmd = &cobra.Command{
	Use:   "children <id-or-prefix>",
	Short: "List direct child issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		children, err := a.Issues.Children(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, children)
	},
}

var (
	readyRoot string
	readyTags []string
)

var issuesReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List executable leaf issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		filter := issuestore.ReadyFilter{Tags: readyTags}
		if len(filter.Tags) == 0 {
			filter.Tags = []string{"node:agent"}
		}
		if readyRoot != "" {
			rootID, err := resolveIssueID(ctx, a.Issues, readyRoot)
			if err != nil {
				return printError(fmt.Sprintf("not found: %s", readyRoot))
			}
			filter.RootID = rootID
		}
		ready, err := a.Issues.Ready(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, ready)
	},
}

var issuesValidateCmd = &cobra.Command{
	Use:   "validate <root-id-or-prefix>",
	Short: "Check whether a subtree has reached a final state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rootID, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		result, err := a.Issues.Validate(ctx, rootID)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, result)
	},
}

var issuesCollapsibleCmd = &cobra.Command{
	Use:   "collapsible <root-id-or-prefix>",
	Short: "List expanded issues whose children are all terminal (§4.2.3 supplement)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rootID, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		collapsible, err := a.Issues.Collapsible(ctx, rootID)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, collapsible)
	},
}

var summarizeAPIKey string

var issuesSummarizeCmd = &cobra.Command{
	Use:   "summarize <id-or-prefix>",
	Short: "Summarize a closed issue via a direct Anthropic API call (SPEC_FULL §2 supplement)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		id, err := resolveIssueID(ctx, a.Issues, args[0])
		if err != nil {
			return printError(fmt.Sprintf("not found: %s", args[0]))
		}
		issue, err := a.Issues.Get(ctx, id)
		if err != nil {
			return err
		}

		messages, err := a.Forum.Read(ctx, "issue:"+id, 50)
		if err != nil {
			return err
		}
		var log string
		for _, m := range messages {
			log += fmt.Sprintf("[%s] %s\n", m.Author, m.Body)
		}

		client, err := review.NewClient(summarizeAPIKey)
		if err != nil {
			return err
		}
		summary, err := client.Summarize(ctx, issue, log)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, map[string]string{"id": id, "summary": summary})
	},
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func removeStrings(ss []string, remove []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if !containsString(remove, s) {
			out = append(out, s)
		}
	}
	return out
}

// buildExecutionSpec mirrors cli.py's _build_execution_spec, returning
// nil when every field is empty. deferText, when non-empty, is resolved
// via dagrunner.ParseDeferUntil (the olebedev/when natural-language
// scheduling supplement, SPEC_FULL §12).
func buildExecutionSpec(role, cli, model_, reasoning, promptPath, deferText string) (*model.ExecutionSpec, error) {
	spec := model.ExecutionSpec{}
	set := false
	if role != "" {
		spec.Role = &role
		set = true
	}
	if cli != "" {
		spec.CLI = &cli
		set = true
	}
	if model_ != "" {
		spec.Model = &model_
		set = true
	}
	if reasoning != "" {
		spec.Reasoning = &reasoning
		set = true
	}
	if promptPath != "" {
		spec.PromptPath = &promptPath
		set = true
	}
	if deferText != "" {
		ts, err := dagrunner.ParseDeferUntil(deferText, time.Now())
		if err != nil {
			return nil, err
		}
		spec.DeferUntil = &ts
		set = true
	}
	if !set {
		return nil, nil
	}
	return &spec, nil
}

func init() {
	issuesListCmd.Flags().StringVar(&issueListStatus, "status", "", "open | in_progress | closed")
	issuesListCmd.Flags().StringVar(&issueListTag, "tag", "", "filter by tag")
	issuesListCmd.Flags().StringVar(&issueListRoot, "root", "", "scope to subtree rooted at this issue")
	issuesListCmd.Flags().IntVar(&issueListLimit, "limit", 0, "limit number of returned issues (0 = all)")

	issuesCreateCmd.Flags().StringVarP(&createBody, "body", "b", "", "issue description/body")
	issuesCreateCmd.Flags().StringVar(&createParent, "parent", "", "add parent dependency to another issue")
	issuesCreateCmd.Flags().StringSliceVarP(&createTags, "tag", "t", nil, "tag to add; repeatable")
	issuesCreateCmd.Flags().StringVarP(&createRole, "role", "r", "", "set execution_spec.role")
	issuesCreateCmd.Flags().StringVar(&createCLI, "cli", "", "set execution_spec.cli")
	issuesCreateCmd.Flags().StringVar(&createModel, "model", "", "set execution_spec.model")
	issuesCreateCmd.Flags().StringVar(&createReasoning, "reasoning", "", "set execution_spec.reasoning")
	issuesCreateCmd.Flags().StringVar(&createPromptPath, "prompt-path", "", "set execution_spec.prompt_path")
	issuesCreateCmd.Flags().StringVar(&createDeferUntil, "defer-until", "", "natural-language defer expression, e.g. \"in 3 hours\"")
	issuesCreateCmd.Flags().IntVarP(&createPriority, "priority", "p", 3, "1-5, lower is higher priority")

	issuesUpdateCmd.Flags().StringVar(&updateTitle, "title", "", "update title")
	issuesUpdateCmd.Flags().StringVar(&updateBody, "body", "", "update body")
	issuesUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "open | in_progress | closed")
	issuesUpdateCmd.Flags().StringVar(&updateOutcome, "outcome", "", "set outcome label")
	issuesUpdateCmd.Flags().IntVar(&updatePriority, "priority", 0, "set priority 1-5")
	issuesUpdateCmd.Flags().StringSliceVar(&updateAddTags, "add-tag", nil, "add tag; repeatable")
	issuesUpdateCmd.Flags().StringSliceVar(&updateRemoveTags, "remove-tag", nil, "remove tag; repeatable")
	issuesUpdateCmd.Flags().StringVar(&updateRole, "role", "", "update execution_spec.role")
	issuesUpdateCmd.Flags().StringVar(&updateCLI, "cli", "", "update execution_spec.cli")
	issuesUpdateCmd.Flags().StringVar(&updateModel, "model", "", "update execution_spec.model")
	issuesUpdateCmd.Flags().StringVar(&updateReasoning, "reasoning", "", "update execution_spec.reasoning")
	issuesUpdateCmd.Flags().StringVar(&updatePromptPath, "prompt-path", "", "update execution_spec.prompt_path")
	issuesUpdateCmd.Flags().StringVar(&updateDeferUntil, "defer-until", "", "natural-language defer expression, e.g. \"tomorrow at 9am\"")
	issuesUpdateCmd.Flags().BoolVar(&updateClearExecutionSpec, "clear-execution-spec", false, "clear execution_spec entirely")

	issuesOpenCmd.Flags().StringVar(&reopenReason, "reason", "", "audit note recorded on the issue.reopened event")
	issuesCloseCmd.Flags().StringVar(&closeOutcome, "outcome", string(model.OutcomeSuccess), "outcome to record")

	issuesReadyCmd.Flags().StringVar(&readyRoot, "root", "", "scope to subtree rooted at this issue")
	issuesReadyCmd.Flags().StringSliceVar(&readyTags, "tag", nil, "required tag; repeatable (default: node:agent)")

	issuesSummarizeCmd.Flags().StringVar(&summarizeAPIKey, "api-key", "", "Anthropic API key (default: $ANTHROPIC_API_KEY)")

	issuesCmd.AddCommand(
		issuesListCmd, issuesGetCmd, issuesCreateCmd, issuesUpdateCmd,
		issuesClaimCmd, issuesOpenCmd, issuesCloseCmd,
		issuesDepCmd, issuesUndepCmd, issuesChildrenCmd,
		issuesReadyCmd, issuesValidateCmd, issuesCollapsibleCmd, issuesSummarizeCmd,
	)
	rootCmd.AddCommand(issuesCmd)
}
