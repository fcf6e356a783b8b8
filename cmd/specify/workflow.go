package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/validate"
	"github.com/HendryAvila/speckit/internal/workflow"
)

func newWorkflowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Track features through the workflow phases",
		Long: `Phases are completed in order:

  ` + phaseList() + `

A phase can only be marked once every earlier phase is complete. --override
forces it anyway and records the transition as forced. Features are named by
id ("3", "003") or folder ("003-search").`,
	}
	cmd.AddCommand(
		newWorkflowInitCmd(a),
		newWorkflowStatusCmd(a),
		newWorkflowAdvanceCmd(a),
		newWorkflowResearchCmd(a),
	)
	return cmd
}

func newWorkflowInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init <feature>",
		Short: "Start tracking a feature",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeature(args[0])
			if err != nil {
				return err
			}
			root, err := a.projectRoot(".")
			if err != nil {
				return err
			}
			st, err := a.orchestrator(root).Store().Init(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Tracking feature %03d (phase %s)\n", st.FeatureID, st.Current())
			return nil
		},
	}
}

func newWorkflowStatusCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status [feature]",
		Short: "Show completed phases and suggested next actions",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			root, err := a.projectRoot(".")
			if err != nil {
				return err
			}
			orch := a.orchestrator(root)

			var all []*workflow.Status
			if len(args) == 1 {
				id, err := parseFeature(args[0])
				if err != nil {
					return err
				}
				st, err := orch.Status(id)
				if err != nil {
					return err
				}
				all = append(all, st)
			} else {
				states, err := orch.Store().List()
				if err != nil {
					return err
				}
				for _, st := range states {
					all = append(all, workflow.Summarize(st))
				}
			}

			if format != validate.FormatText {
				return encode(a.stdout, format, all)
			}
			if len(all) == 0 {
				fmt.Fprintln(a.stdout, "No tracked features. Start one with 'specify feature create'.")
				return nil
			}
			for i, st := range all {
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				writeStatus(a.stdout, st)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", validate.FormatText, "output format: text, json or yaml")
	return cmd
}

func newWorkflowAdvanceCmd(a *app) *cobra.Command {
	var override bool
	cmd := &cobra.Command{
		Use:   "advance <feature> <phase>",
		Short: "Mark a phase complete",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeature(args[0])
			if err != nil {
				return err
			}
			if args[1] == workflow.FlagResearchComplete {
				return a.markResearch(id)
			}
			phase, err := workflow.ParsePhase(args[1])
			if err != nil {
				return usagef("%v", err)
			}
			root, err := a.projectRoot(".")
			if err != nil {
				return err
			}
			res, err := a.orchestrator(root).Transition(cmd.Context(), id, phase, override)
			if err != nil {
				return err
			}

			if res.Decision.Forced {
				fmt.Fprintf(a.stdout, "Feature %03d: %s marked (forced; %s)\n", id, phase, res.Decision.BlockReason)
			} else {
				fmt.Fprintf(a.stdout, "Feature %03d: %s marked\n", id, phase)
			}
			writeSuggestions(a.stdout, res.Suggestions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&override, "override", false, "mark the phase even though earlier phases are incomplete")
	return cmd
}

func newWorkflowResearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "research <feature>",
		Short: "Record that research for a feature is complete",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeature(args[0])
			if err != nil {
				return err
			}
			return a.markResearch(id)
		},
	}
}

func (a *app) markResearch(id int) error {
	root, err := a.projectRoot(".")
	if err != nil {
		return err
	}
	st, err := a.orchestrator(root).MarkResearch(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Feature %03d: research complete\n", id)
	writeSuggestions(a.stdout, workflow.Suggest(st))
	return nil
}

// parseFeature accepts "3", "003" or a folder name such as "003-search".
func parseFeature(s string) (int, error) {
	base := filepath.Base(strings.TrimSpace(s))
	digits := base
	if i := strings.IndexByte(base, '-'); i >= 0 {
		digits = base[:i]
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id <= 0 {
		return 0, usagef("invalid feature %q: use its id (e.g. 3) or folder name (e.g. 003-search)", s)
	}
	return id, nil
}

func writeStatus(w io.Writer, st *workflow.Status) {
	fmt.Fprintf(w, "Feature %03d  current: %s", st.State.FeatureID, st.Current)
	if st.Next != "" {
		fmt.Fprintf(w, "  next: %s", st.Next)
	}
	fmt.Fprintln(w)
	for _, p := range workflow.Phases {
		mark := " "
		if st.State.Completed(p) {
			mark = "x"
		}
		suffix := ""
		if st.State.Forced[string(p)] {
			suffix = " (forced)"
		}
		fmt.Fprintf(w, "  [%s] %s%s\n", mark, p, suffix)
	}
	if st.State.Has(workflow.FlagResearchComplete) {
		fmt.Fprintf(w, "  research complete\n")
	}
	if c := st.State.Complexity; c != nil {
		fmt.Fprintf(w, "  complexity: %s (score %d)\n", c.Level, c.RawScore)
	}
	writeSuggestions(w, st.Suggestions)
}

func writeSuggestions(w io.Writer, s []workflow.Suggestion) {
	for _, sg := range s {
		fmt.Fprintf(w, "  suggest %s: %s\n", sg.Action, sg.Reason)
	}
}

func phaseList() string {
	names := make([]string, len(workflow.Phases))
	for i, p := range workflow.Phases {
		names[i] = string(p)
	}
	return strings.Join(names, " -> ")
}
