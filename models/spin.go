package models

import "strconv"

// OutcomeKind tags the variant held by a SpinOutcome.
type OutcomeKind int

const (
	OutcomeTransientFailure OutcomeKind = iota
	OutcomeWin
	OutcomeInsufficientBalance
	OutcomeHardError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWin:
		return "win"
	case OutcomeInsufficientBalance:
		return "insufficient_balance"
	case OutcomeHardError:
		return "hard_error"
	default:
		return "transient_failure"
	}
}

// SpinOutcome is the classified result of one wager-and-spin call.
type SpinOutcome struct {
	Kind OutcomeKind

	// Win
	Multiplier float64
	Label      string
	Name       string

	// HardError
	Message string

	// TransientFailure
	Err error
}

// RewardLabel resolves the label shown for a win: reported label, then
// reported name, then "x<multiplier>".
func (o SpinOutcome) RewardLabel() string {
	if o.Label != "" {
		return o.Label
	}
	if o.Name != "" {
		return o.Name
	}
	return "x" + strconv.FormatFloat(o.Multiplier, 'f', -1, 64)
}

// SpinRequest is the wager body sent to the wheel endpoint.
type SpinRequest struct {
	Game string  `json:"game"`
	Bet  SpinBet `json:"bet"`
}

type SpinBet struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
