package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/bundle"
	"github.com/HendryAvila/speckit/internal/history"
	"github.com/HendryAvila/speckit/internal/install"
	"github.com/HendryAvila/speckit/internal/validate"
)

type initOptions struct {
	version  string
	platform string
	format   string
	force    bool
	offline  bool
	minimal  bool
}

func newInitCmd(a *app) *cobra.Command {
	var o initOptions
	cmd := &cobra.Command{
		Use:   "init [target]",
		Short: "Install templates, scripts and agent commands into a project",
		Long: `Install a template bundle into target (default: the current directory).

The bundle is resolved from GitHub releases and cached; --offline only reads
the cache and --version=builtin uses the templates compiled into specify.
Existing managed files are never overwritten unless --force is given, in
which case they are moved aside with a timestamped .backup- suffix.

Platforms: ` + platformNames() + `

Examples:
  # Latest templates for Claude
  specify init

  # A pinned version for Copilot, without network access
  specify init ./app --version 1.4.0 --platform copilot --offline`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			return a.runInit(cmd, target, o)
		},
	}
	cmd.Flags().StringVar(&o.version, "version", bundle.Latest, "template version: latest, builtin or a semantic version")
	cmd.Flags().StringVar(&o.platform, "platform", install.DefaultProfile, "AI platform profile")
	cmd.Flags().StringVar(&o.format, "format", validate.FormatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&o.force, "force", false, "back up and replace existing managed files")
	cmd.Flags().BoolVar(&o.offline, "offline", false, "never contact the network; use the cache")
	cmd.Flags().BoolVar(&o.minimal, "minimal", false, "install only the essential templates and the constitution")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, target string, o initOptions) error {
	if err := checkFormat(o.format); err != nil {
		return err
	}
	profile, err := install.Lookup(o.platform)
	if err != nil {
		return usagef("%v", err)
	}

	b, err := a.manager().Fetch(cmd.Context(), o.version, o.offline)
	if err != nil {
		return err
	}

	rep, err := install.New(a.logger).Install(cmd.Context(), b, profile, target, install.Options{
		Force:   o.force,
		Minimal: o.minimal,
		Offline: o.offline,
	})
	if err != nil {
		return err
	}

	a.openJournal(rep.Target)
	a.record(history.KindInstall, 0, fmt.Sprintf("version=%s platform=%s files=%d", rep.Version, rep.Profile, len(rep.Files)))

	if o.format != validate.FormatText {
		return encode(a.stdout, o.format, rep)
	}
	fmt.Fprintf(a.stdout, "Installed templates %s for %s into %s (%d files)\n", rep.Version, rep.Profile, rep.Target, len(rep.Files))
	for _, bk := range rep.Backups {
		fmt.Fprintf(a.stdout, "  backed up %s -> %s\n", bk.From, bk.To)
	}
	if rep.Structure != nil {
		fmt.Fprint(a.stdout, validate.FormatLines(rep.Structure.Messages))
	}
	return nil
}

func platformNames() string {
	var names []string
	for _, p := range install.ListProfiles() {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}
