package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/logging"
)

// Family identifies one shell implementation of the validators.
type Family string

const (
	FamilyBash       Family = "bash"
	FamilyPowerShell Family = "powershell"
)

// Families lists the shipped script families.
var Families = []Family{FamilyBash, FamilyPowerShell}

// ErrInterpreterNotFound is returned when a family's shell is not on PATH.
var ErrInterpreterNotFound = errors.New("validator interpreter not found on PATH")

// ScriptName returns the file name of a checker's script in a family.
func ScriptName(f Family, c Checker) string {
	if f == FamilyPowerShell {
		return "validate-" + string(c) + ".ps1"
	}
	return "validate-" + string(c) + ".sh"
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Script runs the validator scripts of one family and parses their output.
type Script struct {
	Family Family
	// Dir holds the family's scripts, usually .specify/scripts/<family>.
	Dir    string
	Logger *zap.Logger
}

// Name implements Backend.
func (s Script) Name() string { return string(s.Family) }

// Interpreter resolves the shell for the family.
func (s Script) Interpreter() (string, error) {
	candidates := []string{"bash"}
	if s.Family == FamilyPowerShell {
		candidates = []string{"pwsh", "powershell"}
	}
	for _, c := range candidates {
		if p, err := lookPath(c); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", s.Family, ErrInterpreterNotFound)
}

// Run implements Backend.
func (s Script) Run(ctx context.Context, checker Checker, target string) (*Report, error) {
	switch s.Family {
	case FamilyBash, FamilyPowerShell:
	default:
		return nil, fmt.Errorf("unknown script family %q", s.Family)
	}

	script := filepath.Join(s.Dir, ScriptName(s.Family, checker))
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("validator script %s: %w", script, err)
	}
	shell, err := s.Interpreter()
	if err != nil {
		return nil, err
	}

	var args []string
	if s.Family == FamilyPowerShell {
		args = []string{"-NoProfile", "-NonInteractive", "-File", script, target}
	} else {
		args = []string{script, target}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.OrNop(s.Logger).Debug("running validator script",
		zap.String("family", string(s.Family)),
		zap.String("checker", string(checker)),
		zap.String("script", script))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", filepath.Base(script), err, strings.TrimSpace(stderr.String()))
	}

	msgs, err := ParseOutput(stdout.String())
	if err != nil {
		return nil, fmt.Errorf("parsing %s output: %w", filepath.Base(script), err)
	}
	return &Report{Checker: checker, Target: target, Backend: s.Name(), Messages: msgs}, nil
}
