package spin

import (
	"errors"
	"fmt"
)

// ErrLadderEmpty is returned when a ladder is built without any bets.
var ErrLadderEmpty = errors.New("spin: bet ladder is empty")

// Ladder is a strictly descending list of bet sizes with a cursor that only
// moves down. Once a bet is left behind it is never offered again.
type Ladder struct {
	bets []int64
	pos  int
}

func NewLadder(bets []int64) (*Ladder, error) {
	if len(bets) == 0 {
		return nil, ErrLadderEmpty
	}
	for i, b := range bets {
		if b <= 0 {
			return nil, fmt.Errorf("spin: bet %d must be positive, got %d", i, b)
		}
		if i > 0 && b >= bets[i-1] {
			return nil, fmt.Errorf("spin: bets must be strictly descending (%d after %d)", b, bets[i-1])
		}
	}
	cp := make([]int64, len(bets))
	copy(cp, bets)
	return &Ladder{bets: cp}, nil
}

// Current returns the active bet, or false once the ladder is exhausted.
func (l *Ladder) Current() (int64, bool) {
	if l.pos >= len(l.bets) {
		return 0, false
	}
	return l.bets[l.pos], true
}

// Advance steps down to the next bet and returns it, or false when no
// smaller bet remains.
func (l *Ladder) Advance() (int64, bool) {
	if l.pos < len(l.bets) {
		l.pos++
	}
	return l.Current()
}

func (l *Ladder) Exhausted() bool { return l.pos >= len(l.bets) }
