package state

import (
	"fmt"
	"sync"
)

// Journaled is implemented by every component whose state must roll back when
// a unit of work fails. Snapshot returns an opaque deep copy; Revert restores
// it verbatim.
type Journaled interface {
	Snapshot() any
	Revert(snapshot any)
}

// Journal provides all-or-nothing execution across the registered components.
// Units of work submitted through Exec are strictly serialised; Atomic may be
// nested freely from within a unit (vault → strategy → farm) and only the
// outermost call snapshots, reverts or commits.
//
// Journal is not reentrant across goroutines: concurrent callers must use Exec
// or View.
type Journal struct {
	mu sync.Mutex

	components []Journaled
	hooks      []func() error

	depth    int
	deferred []func()
}

// NewJournal constructs an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Register adds components to the snapshot set.
func (j *Journal) Register(components ...Journaled) {
	for _, c := range components {
		if c != nil {
			j.components = append(j.components, c)
		}
	}
}

// OnCommit registers a hook executed after every successful outermost unit of
// work, before deferred side effects run. A failing hook reverts the unit.
func (j *Journal) OnCommit(hook func() error) {
	if hook != nil {
		j.hooks = append(j.hooks, hook)
	}
}

// Defer queues fn to run once the enclosing outermost unit commits. Outside a
// unit of work fn runs immediately.
func (j *Journal) Defer(fn func()) {
	if fn == nil {
		return
	}
	if j.depth == 0 {
		fn()
		return
	}
	j.deferred = append(j.deferred, fn)
}

// InUnit reports whether a unit of work is currently executing.
func (j *Journal) InUnit() bool { return j.depth > 0 }

// Atomic runs fn as a single unit of work. When fn returns an error (or
// panics) every registered component is restored to the state observed
// before the outermost call.
func (j *Journal) Atomic(fn func() error) error {
	if j.depth > 0 {
		j.depth++
		defer func() { j.depth-- }()
		return fn()
	}
	deferred, err := j.runOutermost(fn)
	if err != nil {
		return err
	}
	for _, d := range deferred {
		d()
	}
	return nil
}

func (j *Journal) runOutermost(fn func() error) (deferred []func(), err error) {
	registered := len(j.components)
	snapshots := make([]any, registered)
	for i, c := range j.components {
		snapshots[i] = c.Snapshot()
	}
	// Components registered inside a failed unit belong to it and are dropped.
	revert := func() {
		for i := registered - 1; i >= 0; i-- {
			j.components[i].Revert(snapshots[i])
		}
		j.components = j.components[:registered]
	}

	j.depth = 1
	j.deferred = nil
	defer func() {
		j.depth = 0
		j.deferred = nil
		if r := recover(); r != nil {
			revert()
			panic(r)
		}
	}()

	if err = fn(); err != nil {
		revert()
		return nil, err
	}
	for _, hook := range j.hooks {
		if hookErr := hook(); hookErr != nil {
			revert()
			return nil, fmt.Errorf("journal: commit hook: %w", hookErr)
		}
	}
	return j.deferred, nil
}

// Exec serialises fn against every other Exec/View caller and runs it as a
// unit of work.
func (j *Journal) Exec(fn func() error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Atomic(fn)
}

// View serialises a read-only fn against concurrent units of work without
// taking snapshots.
func (j *Journal) View(fn func() error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return fn()
}
