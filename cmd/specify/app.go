package main

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/bundle"
	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/history"
	"github.com/HendryAvila/speckit/internal/install"
	"github.com/HendryAvila/speckit/internal/logging"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// app carries what every command shares. Settings, logger and journal are
// created lazily by setup so that "version" and "--help" never touch disk.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	settingsPath string
	logLevel     string

	settings config.Settings
	logger   *zap.Logger
	journal  *history.Store
	ready    bool
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

// setup loads settings and builds the logger. The history journal is
// opened best-effort: a failure is logged and the journal stays nil.
func (a *app) setup() error {
	if a.ready {
		return nil
	}
	s, err := config.LoadSettings(a.settingsPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		s.Log.Level = a.logLevel
	}
	logger, err := logging.New(logging.Config{Level: s.Log.Level, Format: s.Log.Format, Output: a.stderr})
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = logger
	a.ready = true
	return nil
}

// openJournal opens the history journal for project. It is a no-op when
// history is disabled or already open.
func (a *app) openJournal(project string) {
	if a.journal != nil || a.settings.History.Disabled {
		return
	}
	j, err := history.Open(a.settings.History.Path, project, a.logger)
	if err != nil {
		a.logger.Warn("history journal unavailable", zap.Error(err))
		return
	}
	a.journal = j
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("closing history journal", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// projectRoot resolves the project that contains dir (default: cwd).
func (a *app) projectRoot(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return "", err
	}
	if !config.Exists(root) {
		return "", config.ErrNotInitialized
	}
	return root, nil
}

// orchestrator builds a workflow orchestrator for root with the history
// journal attached.
func (a *app) orchestrator(root string) *workflow.Orchestrator {
	orch := workflow.NewOrchestrator(workflow.NewFileStore(root, a.logger), a.logger)
	a.openJournal(root)
	if a.journal != nil {
		orch.SetRecorder(a.journal)
	}
	return orch
}

// manager builds the bundle manager from settings.
func (a *app) manager() *bundle.Manager {
	n := a.settings.Network
	src := bundle.NewGitHubSource(a.settings.GitHub, n.Timeout)
	return bundle.NewManager(src, bundle.Options{
		CacheDir:       a.settings.CacheDir,
		Retries:        n.Retries,
		InitialBackoff: n.InitialBackoff,
		AttemptTimeout: n.Timeout,
	}, a.logger)
}

// record writes a journal event when the journal is open.
func (a *app) record(kind string, featureID int, detail string) {
	a.journal.Record(kind, featureID, detail, false)
}

// --- Exit codes ---

const (
	exitOK    = 0
	exitError = 1
)

// usageError marks bad invocations (wrong arguments, unknown flag values).
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// guidance returns a follow-up hint for the unrecoverable errors a user
// can act on, or "".
func guidance(err error) string {
	var (
		conflict *install.ConflictError
		network  *bundle.NetworkError
		miss     *bundle.CacheMissError
		notFound *bundle.VersionNotFoundError
		checksum *bundle.ChecksumError
		corrupt  *workflow.CorruptStateError
		blocked  *workflow.PreconditionError
		usage    *usageError
	)
	switch {
	case errors.As(err, &usage):
		return "run 'specify --help' for usage"
	case errors.As(err, &conflict):
		return "existing files are backed up and replaced with --force"
	case errors.As(err, &network):
		return "check your connection, or use --offline with a cached version or --version=builtin"
	case errors.As(err, &miss):
		return "run once online to populate the cache, or use --version=builtin"
	case errors.As(err, &notFound):
		return "pick one of the versions listed above, or use --version=latest"
	case errors.As(err, &checksum):
		return "the download was damaged or tampered with; retry later"
	case errors.As(err, &corrupt):
		return "the state file was left untouched for inspection"
	case errors.As(err, &blocked):
		return "complete the missing phases first, or pass --override to force"
	case errors.Is(err, workflow.ErrNotInitialized):
		return "start tracking the feature with 'specify workflow init <feature>'"
	case errors.Is(err, workflow.ErrLocked):
		return "another specify process is updating this feature; retry in a moment"
	}
	return ""
}

// report prints err with guidance and returns the process exit code.
func report(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if hint := guidance(err); hint != "" {
		fmt.Fprintf(w, "  %s\n", hint)
	}
	return exitError
}
