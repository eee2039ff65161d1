// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package gate provides a reopenable tri-state barrier for pausing
// goroutines on entry to a guarded region.
//
// A Gate is open, closed or aborted. Entrants call WaitForOpen: while
// the gate is open they pass straight through; while it is closed they
// block until the gate opens, the timeout expires, or the gate is
// aborted. Aborting is permanent: every current and future entrant is
// turned away with ErrAborted, without needing to interrupt anyone.
//
// The typical owner closes the gate while some shared resource is
// unavailable (a connection being re-established, say), reopens it when
// the resource returns, and aborts it when the resource is gone for
// good.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// ErrAborted is returned by WaitForOpen when the gate is, or becomes,
// aborted. An aborted gate never changes state again, so retrying is
// pointless; the error is for the caller to handle, not the gate.
const ErrAborted = errors.ConstError("gate aborted")

// state records the position of a Gate.
type state int

const (
	stateClosed state = iota
	stateOpen
	stateAborted
)

// Waiter is the entrant side of a Gate.
type Waiter interface {
	// IsOpen reports whether the gate is currently open.
	IsOpen() bool

	// WaitForOpen waits for the gate to open, giving up after timeout.
	WaitForOpen(ctx context.Context, timeout time.Duration) (bool, error)

	// Changes returns a channel that is closed when the gate next
	// changes state.
	Changes() <-chan struct{}
}

// Controller is the owning side of a Gate, which decides whether
// entrants may proceed.
type Controller interface {
	// Open opens a closed gate, releasing all blocked waiters.
	Open() bool

	// Close shuts an open gate against new entrants.
	Close() bool

	// Abort permanently bars entry to a closed gate.
	Abort() bool
}

// Config holds a Gate's dependencies and initial position.
type Config struct {
	// Clock supplies the timers used by WaitForOpen.
	Clock clock.Clock

	// Hooks, if set, is notified of waits, entries and aborts on
	// behalf of the gate's owner. It may be nil.
	Hooks Hooks

	// Open is true if the gate starts open, and false if it starts
	// closed. A gate cannot be created aborted.
	Open bool
}

// Validate returns an error if the config cannot be used to create a
// functional Gate.
func (config Config) Validate() error {
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Gate is a reopenable tri-state barrier. It is safe for concurrent
// use, and must be created with New.
type Gate struct {
	clock clock.Clock
	hooks Hooks

	mu    sync.Mutex
	state state

	// changed is closed, and replaced, on every state transition.
	changed chan struct{}
}

// New returns a Gate in the position indicated by config.Open.
func New(config Config) (*Gate, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	hooks := config.Hooks
	if hooks == nil {
		hooks = nopHooks{}
	}
	st := stateClosed
	if config.Open {
		st = stateOpen
	}
	return &Gate{
		clock:   config.Clock,
		hooks:   hooks,
		state:   st,
		changed: make(chan struct{}),
	}, nil
}

// IsOpen is part of the Waiter interface.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateOpen
}

// Changes is part of the Waiter interface. The reported channel is
// closed at the next state transition; an aborted gate's channel never
// closes.
func (g *Gate) Changes() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.changed
}

// Close is part of the Controller interface. It reports whether this
// call performed the transition; closing a gate that is not open
// changes nothing. Nobody waits on an open gate, so there is nobody
// to wake.
func (g *Gate) Close() bool {
	return g.transition(stateOpen, stateClosed)
}

// Open is part of the Controller interface. It reports whether this
// call performed the transition, in which case every goroutine blocked
// in WaitForOpen is released; opening a gate that is not closed
// changes nothing.
func (g *Gate) Open() bool {
	return g.transition(stateClosed, stateOpen)
}

// Abort is part of the Controller interface. It applies only to a
// closed gate; aborting an open or already-aborted gate changes
// nothing. On transition every blocked waiter is woken to observe the
// aborted state and fail with ErrAborted, as will every later call to
// WaitForOpen.
func (g *Gate) Abort() bool {
	return g.transition(stateClosed, stateAborted)
}

// transition moves the gate from one state to another, waking every
// goroutine selecting on the change channel. No-op if the gate is not
// in from.
func (g *Gate) transition(from, to state) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != from {
		return false
	}
	g.state = to
	close(g.changed)
	g.changed = make(chan struct{})
	return true
}

// WaitForOpen is part of the Waiter interface. It returns true if the
// gate is open now or opens within timeout, and false if the timeout
// expires first; the gate is unchanged by a timeout and the caller is
// free to try again. If the gate is or becomes aborted the call fails
// with ErrAborted; if ctx is cancelled while waiting the call fails
// with the context's error.
//
// Exactly one hook fires per call, on the calling goroutine and
// outside the gate's lock: OnEntry when the call succeeds, OnAbort
// when it fails with ErrAborted, and OnWait (once, before blocking)
// when the gate is closed on arrival — even if the timeout is zero.
// No hook marks a timeout or a cancellation.
func (g *Gate) WaitForOpen(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout < 0 {
		return false, errors.NotValidf("timeout %v", timeout)
	}
	switch st, _ := g.snapshot(); st {
	case stateAborted:
		g.hooks.OnAbort()
		return false, ErrAborted
	case stateOpen:
		g.hooks.OnEntry()
		return true, nil
	}

	// The gate was closed, so we may be in for a wait; the wait hook
	// fires now, exactly once, whatever happens afterwards.
	g.hooks.OnWait()

	deadline := g.clock.Now().Add(timeout)
	for {
		// The hook ran outside the lock, so the state may already
		// have moved on. Recheck before committing to a wait, or an
		// open/abort that raced in would never wake us.
		st, changed := g.snapshot()
		switch st {
		case stateOpen:
			g.hooks.OnEntry()
			return true, nil
		case stateAborted:
			g.hooks.OnAbort()
			return false, ErrAborted
		}
		remaining := deadline.Sub(g.clock.Now())
		if remaining <= 0 {
			return false, nil
		}
		timer := g.clock.NewTimer(remaining)
		select {
		case <-changed:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return false, errors.Trace(ctx.Err())
		case <-timer.Chan():
		}
	}
}

func (g *Gate) snapshot() (state, <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.changed
}
