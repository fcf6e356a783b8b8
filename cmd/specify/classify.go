package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/classify"
	"github.com/HendryAvila/speckit/internal/validate"
)

type classifyOptions struct {
	format  string
	feature int
}

func newClassifyCmd(a *app) *cobra.Command {
	var o classifyOptions
	cmd := &cobra.Command{
		Use:   "classify [description... | -]",
		Short: "Score the complexity of a feature description",
		Long: `Score a feature description as LOW, LOW_MEDIUM, MEDIUM or HIGH by matching
real-time, integration, security, data, stack and scale keywords.

The description is the positional arguments joined by spaces. With no
arguments, or a single "-", it is read from stdin. Flags are never part
of the description.

Examples:
  specify classify "real-time chat with Stripe payments"
  echo "add a static about page" | specify classify --format json
  specify classify --feature 3 - < specs/003-search/spec.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runClassify(args, o)
		},
	}
	cmd.Flags().StringVar(&o.format, "format", validate.FormatText, "output format: text or json")
	cmd.Flags().IntVar(&o.feature, "feature", 0, "store the score in this feature's workflow state")
	return cmd
}

// description resolves the classifier input from positional arguments
// only. cobra has already removed every flag token from args.
func description(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		if stdin == nil {
			return "", nil
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading description from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

func (a *app) runClassify(args []string, o classifyOptions) error {
	if o.format != validate.FormatText && o.format != validate.FormatJSON {
		return usagef("unknown format %q: must be text or json", o.format)
	}
	if o.feature < 0 {
		return usagef("--feature must be a positive feature id")
	}
	text, err := description(args, a.stdin)
	if err != nil {
		return err
	}
	if text == "" {
		return usagef("no description: pass it as arguments or on stdin")
	}

	score := classify.Classify(text)
	if o.feature > 0 {
		root, err := a.projectRoot(".")
		if err != nil {
			return err
		}
		if _, err := a.orchestrator(root).RecordComplexity(o.feature, score); err != nil {
			return err
		}
	}

	if o.format == validate.FormatJSON {
		return encode(a.stdout, validate.FormatJSON, score)
	}
	writeScore(a.stdout, score)
	return nil
}

func writeScore(w io.Writer, s classify.Score) {
	fmt.Fprintf(w, "Complexity: %s (score %d)\n", s.Level, s.RawScore)
	if len(s.Indicators) > 0 {
		fmt.Fprintf(w, "Indicators: %s\n", strings.Join(s.Indicators, ", "))
	}
	if len(s.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords:   %s\n", strings.Join(s.Keywords, ", "))
	}
	if len(s.Recommendations) > 0 {
		fmt.Fprintln(w, "Recommendations:")
		for _, r := range s.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
}
