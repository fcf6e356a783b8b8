// Package history keeps a local journal of what specify did: installs,
// workflow transitions (forced ones included) and classifications.
//
// The journal is advisory. A failure to open or write it is logged and
// never fails the command that produced the event.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/logging"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is replaced in tests.
var timeNow = time.Now

// Event kinds.
const (
	KindInstall    = "install"
	KindTransition = "transition"
	KindResearch   = "research"
	KindClassify   = "classify"
	KindFeature    = "feature"
)

// Event is one journal row.
type Event struct {
	ID        int64     `json:"id" yaml:"id"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	Project   string    `json:"project" yaml:"project"`
	FeatureID int       `json:"feature_id,omitempty" yaml:"feature_id,omitempty"`
	Kind      string    `json:"kind" yaml:"kind"`
	Detail    string    `json:"detail" yaml:"detail"`
	Forced    bool      `json:"forced" yaml:"forced"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store is the SQLite journal. All events written through one Store share
// a run id, so one CLI invocation can be told apart from the next.
type Store struct {
	db      *sql.DB
	runID   string
	project string
	logger  *zap.Logger
}

// Open opens (creating if needed) the journal at path. project is stored
// on every event and is usually the project root.
func Open(path, project string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:      db,
		runID:   uuid.NewString(),
		project: project,
		logger:  logging.OrNop(logger),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// RunID identifies the current invocation.
func (s *Store) RunID() string { return s.runID }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT    NOT NULL,
			project    TEXT    NOT NULL,
			feature_id INTEGER NOT NULL DEFAULT 0,
			kind       TEXT    NOT NULL,
			detail     TEXT    NOT NULL DEFAULT '',
			forced     INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_events_project ON events(project, feature_id);
	`)
	return err
}

// Add writes one event and returns its id.
func (s *Store) Add(kind string, featureID int, detail string, forced bool) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO events (run_id, project, feature_id, kind, detail, forced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, s.project, featureID, kind, detail, boolToInt(forced),
		timeNow().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert event: %w", err)
	}
	return res.LastInsertId()
}

// Record is the best-effort form of Add. It is safe on a nil Store so
// callers can journal unconditionally.
func (s *Store) Record(kind string, featureID int, detail string, forced bool) {
	if s == nil {
		return
	}
	if _, err := s.Add(kind, featureID, detail, forced); err != nil {
		s.logger.Warn("history journal write failed", zap.Error(err), zap.String("kind", kind))
	}
}

// Filter narrows Recent.
type Filter struct {
	// Project limits results to one project; empty means all projects.
	Project string
	// FeatureID limits results to one feature; 0 means all features.
	FeatureID int
	Limit     int
}

// DefaultLimit applies when Filter.Limit is not positive.
const DefaultLimit = 20

// Recent returns matching events, newest first.
func (s *Store) Recent(f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, run_id, project, feature_id, kind, detail, forced, created_at FROM events WHERE 1=1`
	var args []any
	if f.Project != "" {
		query += ` AND project = ?`
		args = append(args, f.Project)
	}
	if f.FeatureID > 0 {
		query += ` AND feature_id = ?`
		args = append(args, f.FeatureID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			forced  int
			created string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Project, &e.FeatureID, &e.Kind, &e.Detail, &forced, &created); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		e.Forced = forced != 0
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
