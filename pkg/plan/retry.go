package plan

// Action is what the generation loop should do after a validation attempt.
type Action int

const (
	// ActionDone: the plan validated, stop.
	ActionDone Action = iota
	// ActionRepair: invalid plan with retries remaining, send a repair
	// prompt.
	ActionRepair
	// ActionGiveUp: retries exhausted, proceed with the last content and
	// flag it.
	ActionGiveUp
)

func (a Action) String() string {
	switch a {
	case ActionDone:
		return "done"
	case ActionRepair:
		return "repair"
	case ActionGiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// DefaultMaxRetries bounds repair attempts after the initial generation.
const DefaultMaxRetries = 2

// RetryState tracks where the generation loop is. Attempt counts from 1.
type RetryState struct {
	Attempt    int
	MaxRetries int
}

// NewRetryState starts at attempt 1 with the given retry budget. A negative
// budget selects the default.
func NewRetryState(maxRetries int) RetryState {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return RetryState{Attempt: 1, MaxRetries: maxRetries}
}

// Next is the pure transition: given the current state and the validation
// result of this attempt, decide what to do. The loop driving it advances
// the state itself via Advance.
func Next(state RetryState, result *Result) Action {
	if result != nil && result.Valid {
		return ActionDone
	}
	if state.Attempt <= state.MaxRetries {
		return ActionRepair
	}
	return ActionGiveUp
}

// Advance returns the state for the next attempt.
func (s RetryState) Advance() RetryState {
	s.Attempt++
	return s
}
