// Package model provides the state shared across a training session:
//
//   - StateManager: the init -> ready -> closed lifecycle of session components
//     (booster, node scorer, session context).
//   - ScoreDesc: the learning rate and base score, the only boosting state a
//     trained forest persists.
//
// Components embed a StateManager and refuse work unless it reports Ready:
//
//	type Booster struct {
//		state *model.StateManager
//		...
//	}
//
//	func (b *Booster) UpdateResidual(...) error {
//		if !b.state.IsReady() {
//			return errors.NewNotInitializedError("Booster", "UpdateResidual")
//		}
//		...
//	}
package model

import (
	"fmt"
	"sync"

	"github.com/ezoic/arbor/pkg/errors"
)

// LifecycleState is the state of a session component.
type LifecycleState int

const (
	// Uninitialized components reject every operation.
	Uninitialized LifecycleState = iota
	// Ready components have been initialized for the session.
	Ready
	// Closed components have been torn down and reject every operation.
	Closed
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
}

// StateManager tracks a component's lifecycle. Safe for concurrent use.
type StateManager struct {
	mu    sync.RWMutex
	state LifecycleState
}

// NewStateManager returns a manager in the Uninitialized state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// State returns the current lifecycle state.
func (s *StateManager) State() LifecycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsReady reports whether the component may be used.
func (s *StateManager) IsReady() bool {
	return s.State() == Ready
}

// SetReady marks the component initialized. Initializing twice is a no-op;
// a closed component cannot be revived.
func (s *StateManager) SetReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return errors.NewModelError("StateManager.SetReady", "component already closed", errors.ErrNotInitialized)
	}
	s.state = Ready
	return nil
}

// Close marks the component torn down. It reports whether this call
// performed the transition.
func (s *StateManager) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.state = Closed
	return true
}

// Reset returns the manager to Uninitialized.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Uninitialized
}
