package common

import "errors"

// ErrReentrancyDetected is returned when a guarded entry point is entered
// again before the outer call has finished.
var ErrReentrancyDetected = errors.New("reentrancy detected")

// ReentrancyGuard protects a contract's public entry points. The zero value is
// ready to use.
type ReentrancyGuard struct {
	entered bool
}

// Enter marks the guard as held or fails when it already is.
func (g *ReentrancyGuard) Enter() error {
	if g == nil {
		return nil
	}
	if g.entered {
		return ErrReentrancyDetected
	}
	g.entered = true
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	if g == nil {
		return
	}
	g.entered = false
}

// Guard runs fn while holding g.
func Guard(g *ReentrancyGuard, fn func() error) error {
	if err := g.Enter(); err != nil {
		return err
	}
	defer g.Exit()
	return fn()
}
