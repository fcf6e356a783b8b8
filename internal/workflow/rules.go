package workflow

import "github.com/HendryAvila/speckit/internal/classify"

// Suggestion is advisory: it names a next action but never gates a
// transition.
type Suggestion struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type rule struct {
	when   func(*State) bool
	action string
	reason string
}

// rules is evaluated top to bottom; every matching rule contributes.
var rules = []rule{
	{
		when: func(s *State) bool {
			return s.Complexity != nil && s.Complexity.Level == classify.LevelHigh &&
				!s.Has(FlagResearchComplete) && !s.Completed(PhasePlanned)
		},
		action: "research",
		reason: "complexity is HIGH and research is not complete",
	},
	{
		when:   func(s *State) bool { return s.Completed(PhaseSpecCreated) && !s.Completed(PhaseClarified) },
		action: "clarify",
		reason: "the specification has not been clarified",
	},
	{
		when:   func(s *State) bool { return s.Completed(PhasePlanned) && !s.Completed(PhaseTasksGenerated) },
		action: "tasks",
		reason: "a plan exists but no tasks were generated",
	},
	{
		when: func(s *State) bool {
			return s.Completed(PhaseTasksGenerated) && !s.Completed(PhaseImplementing)
		},
		action: "implement",
		reason: "tasks are ready for implementation",
	},
	{
		when:   func(s *State) bool { return s.Complexity == nil && s.Completed(PhaseSpecCreated) },
		action: "classify",
		reason: "no complexity score has been recorded",
	},
}

// Suggest evaluates the rule table against st.
func Suggest(st *State) []Suggestion {
	out := []Suggestion{}
	for _, r := range rules {
		if r.when(st) {
			out = append(out, Suggestion{Action: r.action, Reason: r.reason})
		}
	}
	return out
}
