// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package recovery gates entry to a region that depends on a resource
// which occasionally goes away; most obviously, a broker connection
// that has to be re-established after a network failure.
//
// A Guard starts open. While recovery is in progress the guard's gate
// is closed, so new entrants queue instead of touching the broken
// resource; if recovery succeeds they are released, and if the retry
// budget is exhausted the gate is aborted and every entrant, present
// and future, is turned away with gate.ErrAborted.
package recovery

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"

	"github.com/juju/gate"
)

var logger = loggo.GetLogger("gate.recovery")

// ErrRecovering is returned by Recover when the gate is already closed
// because another recovery is in flight.
const ErrRecovering = errors.ConstError("recovery already in progress")

// GuardConfig holds a Guard's dependencies and retry policy.
type GuardConfig struct {
	// Clock drives the retry schedule and entry timeouts.
	Clock clock.Clock

	// Restore makes a single attempt to bring the guarded resource
	// back. Recovery succeeds on the first nil return.
	Restore func(context.Context) error

	// Attempts is the number of Restore attempts made before the
	// guard gives up and aborts its gate.
	Attempts int

	// Delay is the delay before the second Restore attempt; it
	// doubles after every failure.
	Delay time.Duration

	// MaxDelay, if positive, caps the doubling delay.
	MaxDelay time.Duration

	// Hooks, if set, observes waits, entries and rejections on the
	// underlying gate, in addition to the guard's own counters. It
	// may be nil.
	Hooks gate.Hooks
}

// Validate returns an error if the config cannot be expected to drive
// a functional Guard.
func (config GuardConfig) Validate() error {
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Restore == nil {
		return errors.NotValidf("nil Restore")
	}
	if config.Attempts < 1 {
		return errors.NotValidf("non-positive Attempts")
	}
	if config.Delay <= 0 {
		return errors.NotValidf("non-positive Delay")
	}
	return nil
}

// Stats is a snapshot of traffic through a Guard.
type Stats struct {
	// Entered counts callers that passed through the open gate.
	Entered int64

	// Waited counts callers that blocked while recovery ran.
	Waited int64

	// Rejected counts callers turned away by the aborted gate.
	Rejected int64
}

// Guard couples a gate to the recovery of the resource it protects.
// It is safe for concurrent use, and must be created with NewGuard.
type Guard struct {
	config GuardConfig
	gate   *gate.Gate

	aborted  atomic.Bool
	entered  atomic.Int64
	waited   atomic.Int64
	rejected atomic.Int64
}

// NewGuard returns a Guard whose gate starts open.
func NewGuard(config GuardConfig) (*Guard, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	g := &Guard{config: config}
	var err error
	g.gate, err = gate.New(gate.Config{
		Clock: config.Clock,
		Hooks: guardHooks{guard: g, next: config.Hooks},
		Open:  true,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return g, nil
}

// Enter waits for any in-flight recovery to complete, giving up after
// timeout. It returns true if the caller may use the guarded resource,
// and false if the timeout expired first; trying again later is always
// acceptable. It fails with gate.ErrAborted once the guard has given
// up for good, and with the context's error if ctx is cancelled while
// waiting.
func (g *Guard) Enter(ctx context.Context, timeout time.Duration) (bool, error) {
	ok, err := g.gate.WaitForOpen(ctx, timeout)
	return ok, errors.Trace(err)
}

// Active reports whether the guarded resource is currently usable.
func (g *Guard) Active() bool {
	return g.gate.IsOpen()
}

// Recover closes the gate to new entrants and runs the configured
// Restore function until it succeeds or the retry budget runs out. On
// success the gate reopens and every queued entrant proceeds. On
// failure, including cancellation of ctx, the gate is aborted and the
// guard is finished: every queued and future entrant fails with
// gate.ErrAborted.
//
// Recover fails with ErrRecovering if another recovery is already in
// flight, and with gate.ErrAborted if a previous recovery already gave
// up.
func (g *Guard) Recover(ctx context.Context) error {
	if !g.gate.Close() {
		if g.aborted.Load() {
			return gate.ErrAborted
		}
		return ErrRecovering
	}
	logger.Infof("recovery started; holding new entrants")
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return g.config.Restore(ctx)
		},
		Attempts:    g.config.Attempts,
		Delay:       g.config.Delay,
		MaxDelay:    g.config.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       g.config.Clock,
		Stop:        ctx.Done(),
		NotifyFunc: func(err error, attempt int) {
			logger.Warningf("restore attempt %d failed: %v", attempt, err)
		},
	})
	if err == nil {
		g.gate.Open()
		logger.Infof("recovery complete; entrants released")
		return nil
	}
	g.aborted.Store(true)
	g.gate.Abort()
	logger.Errorf("recovery abandoned, rejecting all entrants: %v", err)
	return errors.Annotate(err, "recovery failed")
}

// Stats returns a snapshot of the guard's entry counters.
func (g *Guard) Stats() Stats {
	return Stats{
		Entered:  g.entered.Load(),
		Waited:   g.waited.Load(),
		Rejected: g.rejected.Load(),
	}
}

// guardHooks keeps the guard's counters, and forwards each
// notification to any hooks the caller supplied.
type guardHooks struct {
	guard *Guard
	next  gate.Hooks
}

// OnWait is part of the gate.Hooks interface.
func (h guardHooks) OnWait() {
	h.guard.waited.Add(1)
	logger.Debugf("caller waiting for recovery to complete")
	if h.next != nil {
		h.next.OnWait()
	}
}

// OnEntry is part of the gate.Hooks interface.
func (h guardHooks) OnEntry() {
	h.guard.entered.Add(1)
	if h.next != nil {
		h.next.OnEntry()
	}
}

// OnAbort is part of the gate.Hooks interface.
func (h guardHooks) OnAbort() {
	h.guard.rejected.Add(1)
	if h.next != nil {
		h.next.OnAbort()
	}
}
