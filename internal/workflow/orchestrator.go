package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/classify"
	"github.com/HendryAvila/speckit/internal/logging"
)

// stateNone is the machine state of a document missing even initialized.
const stateNone = "none"

// Decision is the outcome of a transition check.
type Decision struct {
	Allowed     bool    `json:"allowed"`
	Forced      bool    `json:"forced"`
	BlockReason string  `json:"block_reason,omitempty"`
	Missing     []Phase `json:"missing,omitempty"`
}

// newMachine builds the phase gate. Machine states are "none" followed by
// the phases; the event named after a phase is legal from its predecessor
// or any later state, so completed phases can be marked again.
func newMachine(current Phase, callbacks fsm.Callbacks) *fsm.FSM {
	states := make([]string, 0, len(Phases)+1)
	states = append(states, stateNone)
	for _, p := range Phases {
		states = append(states, string(p))
	}

	events := make(fsm.Events, 0, len(Phases))
	for i, p := range Phases {
		events = append(events, fsm.EventDesc{
			Name: string(p),
			Src:  append([]string(nil), states[i:]...),
			Dst:  string(p),
		})
	}

	initial := stateNone
	if current != "" {
		initial = string(current)
	}
	return fsm.NewFSM(initial, events, callbacks)
}

// CanTransition decides whether state may move to target. Every earlier
// phase must be flagged; with override a blocked transition is allowed
// and marked forced.
func CanTransition(st *State, target Phase, override bool) (Decision, error) {
	idx := target.index()
	if idx < 0 {
		return Decision{}, fmt.Errorf("unknown phase %q", target)
	}

	var missing []Phase
	for _, p := range Phases[:idx] {
		if !st.Completed(p) {
			missing = append(missing, p)
		}
	}

	if newMachine(st.Current(), nil).Can(string(target)) {
		return Decision{Allowed: true}, nil
	}
	d := Decision{Missing: missing, BlockReason: blockReason(missing)}
	if override {
		d.Allowed = true
		d.Forced = true
	}
	return d, nil
}

// Recorder is notified of every state change. Implementations must not
// block or fail the caller.
type Recorder interface {
	Record(kind string, featureID int, detail string, forced bool)
}

// Result is returned by Transition.
type Result struct {
	Decision    Decision     `json:"decision"`
	State       *State       `json:"state"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Orchestrator applies phase transitions through a Store.
type Orchestrator struct {
	store    Store
	recorder Recorder
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store Store, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{store: store, logger: logging.OrNop(logger)}
}

// SetRecorder attaches a journal. Nil detaches it.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

func (o *Orchestrator) record(kind string, featureID int, detail string, forced bool) {
	if o.recorder != nil {
		o.recorder.Record(kind, featureID, detail, forced)
	}
}

// Store returns the underlying store.
func (o *Orchestrator) Store() Store { return o.store }

// Transition marks target complete for a feature. A blocked transition
// returns a *PreconditionError and leaves the state untouched.
func (o *Orchestrator) Transition(ctx context.Context, featureID int, target Phase, override bool) (*Result, error) {
	var decision Decision
	st, err := o.store.Mutate(featureID, func(s *State) error {
		d, err := CanTransition(s, target, override)
		if err != nil {
			return err
		}
		decision = d
		if !d.Allowed {
			return &PreconditionError{Target: target, Missing: d.Missing}
		}

		if !d.Forced {
			machine := newMachine(s.Current(), fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					o.logger.Debug("workflow phase entered",
						zap.Int("feature", featureID),
						zap.String("from", e.Src),
						zap.String("to", e.Dst))
				},
			})
			if err := machine.Event(ctx, string(target)); err != nil {
				var noop fsm.NoTransitionError
				if !errors.As(err, &noop) {
					return fmt.Errorf("applying %s: %w", target, err)
				}
			}
		}

		s.Flags[string(target)] = true
		s.CompletedAt[string(target)] = timeNow().UTC()
		if d.Forced {
			s.Forced[string(target)] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision.Forced {
		o.logger.Warn("forced workflow transition",
			zap.Int("feature", featureID),
			zap.String("phase", string(target)),
			zap.String("reason", decision.BlockReason))
	}
	o.record("transition", featureID, string(target), decision.Forced)

	return &Result{Decision: decision, State: st, Suggestions: Suggest(st)}, nil
}

// MarkResearch sets research_complete.
func (o *Orchestrator) MarkResearch(featureID int) (*State, error) {
	st, err := o.store.Mutate(featureID, func(s *State) error {
		s.Flags[FlagResearchComplete] = true
		s.CompletedAt[FlagResearchComplete] = timeNow().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.record("research", featureID, FlagResearchComplete, false)
	return st, nil
}

// RecordComplexity stores a classification result on the feature.
func (o *Orchestrator) RecordComplexity(featureID int, score classify.Score) (*State, error) {
	st, err := o.store.Mutate(featureID, func(s *State) error {
		sc := score
		s.Complexity = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.record("classify", featureID, string(score.Level), false)
	return st, nil
}

// Status is a read-only summary of a feature.
type Status struct {
	State       *State       `json:"state"`
	Current     Phase        `json:"current"`
	Next        Phase        `json:"next,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Status reads a feature's state and its advisory suggestions.
func (o *Orchestrator) Status(featureID int) (*Status, error) {
	st, err := o.store.Read(featureID)
	if err != nil {
		return nil, err
	}
	return Summarize(st), nil
}

// Summarize builds the Status view of st.
func Summarize(st *State) *Status {
	return &Status{State: st, Current: st.Current(), Next: st.Next(), Suggestions: Suggest(st)}
}
