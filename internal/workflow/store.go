package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/fsutil"
	"github.com/HendryAvila/speckit/internal/logging"
)

// Store persists workflow state. Abstracted so the orchestrator and the
// MCP tools can be tested against fakes.
type Store interface {
	Init(featureID int) (*State, error)
	Read(featureID int) (*State, error)
	Mutate(featureID int, fn func(*State) error) (*State, error)
	List() ([]*State, error)
}

const (
	defaultLockWait  = 5 * time.Second
	defaultLockStale = 2 * time.Minute
	lockPoll         = 25 * time.Millisecond
)

var stateFilePattern = regexp.MustCompile(`^([0-9]{3,})\.json$`)

// FileStore keeps one JSON document per feature in a directory.
type FileStore struct {
	dir       string
	lockWait  time.Duration
	lockStale time.Duration
	logger    *zap.Logger
}

// NewFileStore creates a store under the project's .specify/state/.
func NewFileStore(projectRoot string, logger *zap.Logger) *FileStore {
	return &FileStore{
		dir:       config.StatePath(projectRoot),
		lockWait:  defaultLockWait,
		lockStale: defaultLockStale,
		logger:    logging.OrNop(logger),
	}
}

// Path returns the state document path for a feature.
func (s *FileStore) Path(featureID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%03d.json", featureID))
}

// Init creates the initial state document. It fails with
// ErrAlreadyInitialized when one exists, even if it is corrupt.
func (s *FileStore) Init(featureID int) (*State, error) {
	if featureID <= 0 {
		return nil, fmt.Errorf("invalid feature id %d", featureID)
	}
	unlock, err := s.lock(featureID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := os.Stat(s.Path(featureID)); err == nil {
		return nil, fmt.Errorf("feature %03d: %w", featureID, ErrAlreadyInitialized)
	}
	st := NewState(featureID)
	if err := s.write(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Read loads a feature's state.
func (s *FileStore) Read(featureID int) (*State, error) {
	path := s.Path(featureID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("feature %03d: %w", featureID, ErrNotInitialized)
		}
		return nil, fmt.Errorf("reading workflow state: %w", err)
	}
	return decode(path, featureID, data)
}

// Mutate applies fn to a copy of the current state under the feature lock
// and writes the result atomically. When fn returns an error nothing is
// written and the error is returned unchanged.
func (s *FileStore) Mutate(featureID int, fn func(*State) error) (*State, error) {
	unlock, err := s.lock(featureID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.Read(featureID)
	if err != nil {
		return nil, err
	}
	next := current.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.SchemaVersion = SchemaVersion
	next.FeatureID = featureID
	next.LastUpdated = timeNow().UTC()
	if err := s.write(next); err != nil {
		return nil, err
	}
	return next, nil
}

// List returns every feature's state ordered by id. A corrupt document
// fails the whole listing.
func (s *FileStore) List() ([]*State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory: %w", err)
	}

	var ids []int
	for _, e := range entries {
		m := stateFilePattern.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	states := make([]*State, 0, len(ids))
	for _, id := range ids {
		st, err := s.Read(id)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func (s *FileStore) write(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling workflow state: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(s.Path(st.FeatureID), data, 0o644); err != nil {
		return fmt.Errorf("writing workflow state: %w", err)
	}
	return nil
}

func decode(path string, featureID int, data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &CorruptStateError{Path: path, Err: err}
	}
	switch {
	case st.SchemaVersion == 0:
		return nil, &CorruptStateError{Path: path, Err: errors.New("missing schema_version")}
	case st.SchemaVersion > SchemaVersion:
		return nil, &CorruptStateError{Path: path, Err: fmt.Errorf("schema_version %d is newer than supported %d", st.SchemaVersion, SchemaVersion)}
	case st.FeatureID != featureID:
		return nil, &CorruptStateError{Path: path, Err: fmt.Errorf("feature_id %d does not match file", st.FeatureID)}
	case st.Flags == nil:
		return nil, &CorruptStateError{Path: path, Err: errors.New("missing flags")}
	}
	if st.CompletedAt == nil {
		st.CompletedAt = map[string]time.Time{}
	}
	if st.Forced == nil {
		st.Forced = map[string]bool{}
	}
	return &st, nil
}

// --- Advisory lock ---

// lock takes <state>.lock with O_EXCL. A lock older than lockStale is
// assumed abandoned by a killed process and broken.
func (s *FileStore) lock(featureID int) (unlock func(), err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	path := s.Path(featureID) + ".lock"
	deadline := time.Now().Add(s.lockWait)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > s.lockStale {
			s.logger.Warn("breaking stale workflow lock", zap.String("path", path), zap.Time("since", info.ModTime()))
			_ = os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("feature %03d: %w", featureID, ErrLocked)
		}
		time.Sleep(lockPoll)
	}
}
