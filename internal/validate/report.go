package validate

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Checker names one validation pass.
type Checker string

const (
	CheckStructure   Checker = "structure"
	CheckNaming      Checker = "naming"
	CheckFrontmatter Checker = "frontmatter"
)

// Checkers lists every checker in the order "all" runs them.
var Checkers = []Checker{CheckStructure, CheckNaming, CheckFrontmatter}

// ParseChecker resolves a --scope value. "all" is handled by callers.
func ParseChecker(s string) (Checker, error) {
	for _, c := range Checkers {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown check %q: must be structure, naming, frontmatter or all", s)
}

// label is the capitalised name used in completion lines.
func (c Checker) label() string {
	switch c {
	case CheckStructure:
		return "Structure"
	case CheckNaming:
		return "Naming"
	case CheckFrontmatter:
		return "Frontmatter"
	}
	return string(c)
}

// Report is the result of one checker run.
type Report struct {
	Checker  Checker   `json:"checker" yaml:"checker"`
	Target   string    `json:"target" yaml:"target"`
	Backend  string    `json:"backend" yaml:"backend"`
	Messages []Message `json:"messages" yaml:"messages"`
	// ExitCode mirrors the validators' process status. Findings are
	// informational and it is always 0.
	ExitCode int `json:"exit_code" yaml:"exit_code"`
}

// Counts tallies findings by level.
func (r *Report) Counts() (errs, warns, infos int) {
	for _, m := range r.Messages {
		switch m.Level {
		case LevelError:
			errs++
		case LevelWarn:
			warns++
		default:
			infos++
		}
	}
	return errs, warns, infos
}

// HasErrors reports whether any ERROR finding was produced.
func (r *Report) HasErrors() bool {
	errs, _, _ := r.Counts()
	return errs > 0
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write renders reports in the requested format.
func Write(w io.Writer, format string, reports []*Report) error {
	switch format {
	case "", FormatText:
		for _, r := range reports {
			if _, err := io.WriteString(w, FormatLines(r.Messages)); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: must be text, json or yaml", format)
	}
}
