// Package workflow tracks each feature's progress through the delivery
// phases and decides which phase transitions are legal.
//
// State lives in one JSON document per feature under .specify/state/.
// Store.Mutate is the only write path; the Orchestrator is the only
// component that reasons about phase ordering.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/speckit/internal/classify"
)

// SchemaVersion is written into every state document.
const SchemaVersion = 1

// Phase is one step of the workflow, in fixed order.
type Phase string

const (
	PhaseInitialized    Phase = "initialized"
	PhaseSpecCreated    Phase = "spec_created"
	PhaseClarified      Phase = "clarified"
	PhasePlanned        Phase = "planned"
	PhaseTasksGenerated Phase = "tasks_generated"
	PhaseImplementing   Phase = "implementing"
	PhaseDone           Phase = "done"
)

// Phases lists every phase in order.
var Phases = []Phase{
	PhaseInitialized,
	PhaseSpecCreated,
	PhaseClarified,
	PhasePlanned,
	PhaseTasksGenerated,
	PhaseImplementing,
	PhaseDone,
}

// FlagResearchComplete is an extra flag outside the phase order. It never
// gates a transition; it only silences the research suggestion.
const FlagResearchComplete = "research_complete"

// ParsePhase resolves a phase name.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if string(p) == s {
			return p, nil
		}
	}
	names := make([]string, len(Phases))
	for i, p := range Phases {
		names[i] = string(p)
	}
	return "", fmt.Errorf("unknown phase %q: must be one of %s", s, strings.Join(names, ", "))
}

// index returns the phase's position, or -1.
func (p Phase) index() int {
	for i, q := range Phases {
		if q == p {
			return i
		}
	}
	return -1
}

// State is the persisted progress record of one feature.
type State struct {
	SchemaVersion int                  `json:"schema_version"`
	FeatureID     int                  `json:"feature_id"`
	Flags         map[string]bool      `json:"flags"`
	CompletedAt   map[string]time.Time `json:"completed_at,omitempty"`
	Forced        map[string]bool      `json:"forced,omitempty"`
	Complexity    *classify.Score      `json:"complexity,omitempty"`
	LastUpdated   time.Time            `json:"last_updated"`
}

// NewState creates the initial state of a feature.
func NewState(featureID int) *State {
	now := timeNow().UTC()
	return &State{
		SchemaVersion: SchemaVersion,
		FeatureID:     featureID,
		Flags:         map[string]bool{string(PhaseInitialized): true},
		CompletedAt:   map[string]time.Time{string(PhaseInitialized): now},
		Forced:        map[string]bool{},
		LastUpdated:   now,
	}
}

// Has reports whether a flag is set.
func (s *State) Has(flag string) bool { return s.Flags[flag] }

// Completed reports whether a phase is flagged.
func (s *State) Completed(p Phase) bool { return s.Flags[string(p)] }

// Current returns the highest phase reached without gaps, or "" when even
// initialized is missing.
func (s *State) Current() Phase {
	var cur Phase
	for _, p := range Phases {
		if !s.Completed(p) {
			break
		}
		cur = p
	}
	return cur
}

// Next returns the first phase not yet flagged, or "" when all are done.
func (s *State) Next() Phase {
	for _, p := range Phases {
		if !s.Completed(p) {
			return p
		}
	}
	return ""
}

// clone deep-copies s so a failed mutation never leaks into the caller's
// copy.
func (s *State) clone() *State {
	c := *s
	c.Flags = make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		c.Flags[k] = v
	}
	c.CompletedAt = make(map[string]time.Time, len(s.CompletedAt))
	for k, v := range s.CompletedAt {
		c.CompletedAt[k] = v
	}
	c.Forced = make(map[string]bool, len(s.Forced))
	for k, v := range s.Forced {
		c.Forced[k] = v
	}
	if s.Complexity != nil {
		score := *s.Complexity
		score.Indicators = append([]string(nil), s.Complexity.Indicators...)
		score.Keywords = append([]string(nil), s.Complexity.Keywords...)
		score.Recommendations = append([]string(nil), s.Complexity.Recommendations...)
		c.Complexity = &score
	}
	return &c
}

// --- Errors ---

var (
	// ErrNotInitialized means no state document exists for the feature.
	ErrNotInitialized = errors.New("feature state not initialized")
	// ErrAlreadyInitialized is returned by Init when state already exists.
	ErrAlreadyInitialized = errors.New("feature state already initialized")
	// ErrLocked means another process held the state lock for too long.
	ErrLocked = errors.New("feature state is locked by another process")
)

// CorruptStateError means a state document exists but cannot be used.
// It is never replaced by a default.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("workflow state %s is corrupt: %v (restore it from backup or delete it and re-run 'specify workflow init')", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// PreconditionError means a transition was blocked because earlier phases
// are not complete.
type PreconditionError struct {
	Target  Phase
	Missing []Phase
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot mark %s: %s (retry with --override to force)", e.Target, blockReason(e.Missing))
}

func blockReason(missing []Phase) string {
	names := make([]string, len(missing))
	for i, p := range missing {
		names[i] = string(p)
	}
	return "missing precondition(s): " + strings.Join(names, ", ")
}
