package link

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/modelrail/go-trackside/logger"
)

// ConnState represents the stages of a link to a peer.
type ConnState uint32

const (
	// FailedState indicates that no socket is established and no connect
	// attempt is in flight.
	FailedState ConnState = iota
	// ConnectingState indicates that the manager is dialing or waiting to
	// accept a socket.
	ConnectingState
	// ActiveState indicates that a socket is established and frames may be
	// exchanged.
	ActiveState
)

// IsFailed returns if the current state is failed.
func (cs ConnState) IsFailed() bool { return cs == FailedState }

// IsConnecting returns if the current state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsActive returns if the current state is active.
func (cs ConnState) IsActive() bool { return cs == ActiveState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case FailedState:
		return "failed"
	case ConnectingState:
		return "connecting"
	case ActiveState:
		return "active"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the state of a link changes.
//
// Note: the handler is invoked in blocking mode. Take care with
// long-running implementations.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// ConnStateMgr manages the connection state of one link.
//
// It provides methods for managing state transitions and notifying
// listeners of state changes. The state transitions are safe for use from
// concurrent goroutines.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr creates a new ConnStateMgr initialized to FailedState.
//
// It accepts optional ConnStateChangeHandler functions invoked on every
// state change.
func NewConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	cs := &ConnStateMgr{
		logger:   l,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	cs.handlers = append(cs.handlers, handlers...)

	if cs.logger == nil {
		cs.logger = logger.GetLogger()
	}

	cs.state.Store(uint32(FailedState))
	cs.cond = sync.NewCond(&cs.mu)

	return cs
}

// State returns the current connection state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds one or more ConnStateChangeHandler functions to be invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState waits for the connection state to reach the specified state or
// until the context is done. It returns nil if the desired state is
// reached, or the context error otherwise.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		cs.cond.Broadcast()
	})
	defer stopFunc()

	for cs.State() != state {
		select {
		case <-ctx.Done():
			cs.logger.Debug("wait link state cancelled", "cur_state", cs.State(), "desired_state", state)
			return ctx.Err()
		default:
			cs.cond.Wait()
		}
	}

	return nil
}

// ToConnecting transitions the state to ConnectingState.
// This transition is allowed from any state and marks the start of a dial
// or accept cycle. If the state is already ConnectingState, it is a no-op.
func (cs *ConnStateMgr) ToConnecting() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if curState.IsConnecting() {
		return
	}

	cs.setState(ConnectingState)
	cs.invokeHandlers(curState, ConnectingState)
}

// ToActive transitions the state to ActiveState.
//
// This transition is only allowed from ConnectingState; a socket can only
// become active as the result of a connect or accept cycle.
// If the state is already ActiveState, the function is a no-op.
//
// Returns nil on success, or ErrInvalidTransition otherwise.
func (cs *ConnStateMgr) ToActive() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if curState.IsActive() {
		return nil
	}

	if !curState.IsConnecting() {
		return ErrInvalidTransition
	}

	cs.setState(ActiveState)
	cs.invokeHandlers(curState, ActiveState)

	return nil
}

// ToFailed transitions the state to FailedState.
// This transition is allowed from any state and represents loss of the
// socket or a stop request. If the state is already FailedState, it is a
// no-op.
func (cs *ConnStateMgr) ToFailed() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if curState.IsFailed() {
		return
	}

	// change state to failed BEFORE the handlers run so that concurrent
	// senders fail fast while handlers are still in flight
	cs.setState(FailedState)
	cs.invokeHandlers(curState, FailedState)
}

// IsFailed returns if the current state is failed.
func (cs *ConnStateMgr) IsFailed() bool { return cs.State().IsFailed() }

// IsConnecting returns if the current state is connecting.
func (cs *ConnStateMgr) IsConnecting() bool { return cs.State().IsConnecting() }

// IsActive returns if the current state is active.
func (cs *ConnStateMgr) IsActive() bool { return cs.State().IsActive() }

// setState atomically sets the current state and broadcasts a signal to any
// waiting goroutines.
func (cs *ConnStateMgr) setState(newState ConnState) {
	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()
}

// invokeHandlers invokes all registered handlers with the previous and new states.
func (cs *ConnStateMgr) invokeHandlers(prevState ConnState, newState ConnState) {
	for _, handler := range cs.handlers {
		if handler != nil {
			handler(prevState, newState)
		}
	}
}
