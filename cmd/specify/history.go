package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/history"
	"github.com/HendryAvila/speckit/internal/validate"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		feature int
		all     bool
		format  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent installs, transitions and classifications",
		Long: `List the newest events from the history journal (default
~/.specify/history.db). Inside a project only that project's events are
shown unless --all is given.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if a.settings.History.Disabled {
				return errors.New("the history journal is disabled in settings")
			}

			project := ""
			if root, err := a.projectRoot("."); err == nil {
				project = root
			} else if !errors.Is(err, config.ErrNotInitialized) {
				return err
			}
			a.openJournal(project)
			if a.journal == nil {
				return fmt.Errorf("history journal %s could not be opened", a.settings.History.Path)
			}

			f := history.Filter{FeatureID: feature, Limit: limit}
			if !all {
				f.Project = project
			}
			events, err := a.journal.Recent(f)
			if err != nil {
				return err
			}

			if format != validate.FormatText {
				return encode(a.stdout, format, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(a.stdout, "No events recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tFEATURE\tKIND\tDETAIL")
			for _, e := range events {
				feat := "-"
				if e.FeatureID > 0 {
					feat = fmt.Sprintf("%03d", e.FeatureID)
				}
				detail := e.Detail
				if e.Forced {
					detail += " (forced)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), feat, e.Kind, detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "maximum number of events")
	cmd.Flags().IntVar(&feature, "feature", 0, "only events for this feature id")
	cmd.Flags().BoolVar(&all, "all", false, "include every project")
	cmd.Flags().StringVar(&format, "format", validate.FormatText, "output format: text, json or yaml")
	return cmd
}
