package checkout

// State is a step of the checkout flow.
type State string

const (
	StateAmount     State = "amount"
	StateSelection  State = "selection"
	StateReview     State = "review"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// States lists every state in flow order.
var States = []State{
	StateAmount,
	StateSelection,
	StateReview,
	StateProcessing,
	StateSuccess,
	StateFailure,
}

// IsTerminal reports whether the state ends a submission attempt.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}
