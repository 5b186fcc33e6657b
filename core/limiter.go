package core

import (
	"fmt"
	"sync"
)

// TurnLimiter enforces the maximum number of backend turns an agent may take
// while answering a single input.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter allowing max turns. Values below one are
// raised to one so every agent gets at least a single turn.
func NewTurnLimiter(max int) *TurnLimiter {
	if max < 1 {
		max = 1
	}
	return &TurnLimiter{max: max}
}

// Take consumes one turn and returns an error once the budget is exhausted.
func (l *TurnLimiter) Take() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count >= l.max {
		return fmt.Errorf("exceeded max turns: %d", l.max)
	}
	l.count++

	return nil
}

// Used returns the number of turns consumed so far.
func (l *TurnLimiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many turns are left.
func (l *TurnLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.max - l.count
}
