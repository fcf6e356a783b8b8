package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/validate"
)

type checkOptions struct {
	scope           string
	format          string
	backend         string
	fix             bool
	updateTemplates bool
}

func newCheckCmd(a *app) *cobra.Command {
	var o checkOptions
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate project structure, file naming and artifact frontmatter",
		Long: `Run the structure, naming and frontmatter checkers against path (default:
the current directory). path may be the project root, a feature folder or a
single artifact file. Structure and naming always check the whole project;
frontmatter checks only the artifacts below path.

Findings are printed one per line as
  [LEVEL] file[:line] - message (suggestion: text)
and never change the exit code.

--fix creates missing required directories and renames artifacts to their
suggested lowercase-hyphenated name before checking.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return a.runCheck(cmd, path, o)
		},
	}
	cmd.Flags().StringVar(&o.scope, "scope", "all", "structure, naming, frontmatter or all")
	cmd.Flags().StringVar(&o.format, "format", validate.FormatText, "output format: text, json or yaml")
	cmd.Flags().StringVar(&o.backend, "backend", "native", "validator: native, bash or powershell")
	cmd.Flags().BoolVar(&o.fix, "fix", false, "apply mechanical fixes before checking")
	cmd.Flags().BoolVar(&o.updateTemplates, "update-templates", false, "also report whether newer templates are published")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, path string, o checkOptions) error {
	if err := checkFormat(o.format); err != nil {
		return err
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	start := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		start = filepath.Dir(target)
	}
	root, err := config.FindProjectRoot(start)
	if err != nil {
		return err
	}

	cfg, err := config.LoadProject(root)
	if err != nil && !errors.Is(err, config.ErrNotInitialized) {
		return err
	}
	checkers, err := validate.Select(o.scope, cfg.Skips)
	if err != nil {
		return usagef("%v", err)
	}

	var backend validate.Backend
	switch o.backend {
	case "native":
		backend = validate.Native{}
	case string(validate.FamilyBash), string(validate.FamilyPowerShell):
		fam := validate.Family(o.backend)
		backend = validate.Script{Family: fam, Dir: config.ScriptPath(root, string(fam)), Logger: a.logger}
	default:
		return usagef("unknown backend %q: must be native, bash or powershell", o.backend)
	}
	engine := validate.NewEngine(backend, a.logger)

	if o.fix {
		actions, err := engine.Fix(root)
		for _, act := range actions {
			if act.From != "" {
				fmt.Fprintf(a.stderr, "fixed: %s %s -> %s\n", act.Kind, act.From, act.Path)
			} else {
				fmt.Fprintf(a.stderr, "fixed: %s %s\n", act.Kind, act.Path)
			}
		}
		if err != nil {
			return err
		}
	}

	reports, err := engine.CheckProject(cmd.Context(), root, target, checkers)
	if err != nil {
		return err
	}
	if err := validate.Write(a.stdout, o.format, reports); err != nil {
		return err
	}

	if o.updateTemplates {
		a.reportTemplateUpdate(cmd)
	}
	return nil
}

// reportTemplateUpdate prints a notice when newer templates are published.
// Failures are logged only.
func (a *app) reportTemplateUpdate(cmd *cobra.Command) {
	st, err := a.manager().CheckUpdate(cmd.Context())
	if err != nil {
		a.logger.Warn("checking for template updates", zap.Error(err))
		return
	}
	switch {
	case st.UpdateAvailable:
		fmt.Fprintf(a.stderr, "templates %s are available (cached: %s); run 'specify init --force' to upgrade\n", st.Latest, st.Cached)
	default:
		fmt.Fprintf(a.stderr, "templates are up to date (%s)\n", st.Latest)
	}
}
