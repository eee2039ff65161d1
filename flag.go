// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gate

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"
	"github.com/juju/worker/v4/dependency"
)

var logger = loggo.GetLogger("gate.flag")

// ErrChanged indicates that a Flag's Check result is no longer valid,
// and a new Flag must be started to get a valid result.
var ErrChanged = errors.New("gate state changed, restart worker")

// Checker is implemented by workers whose single boolean output
// determines whether dependent workers should run. It is the
// capability a dependency engine extracts from a Flag.
type Checker interface {
	Check() bool
}

// Flag is a worker that exposes whether its gate was open when the
// worker started. When the gate changes state the Flag completes with
// ErrChanged, prompting the dependency engine to restart it and
// re-evaluate anything that depends on it.
type Flag struct {
	catacomb catacomb.Catacomb
	changed  <-chan struct{}
	open     bool
}

// NewFlag returns a Flag reporting the supplied gate's position.
func NewFlag(w Waiter) (*Flag, error) {
	if w == nil {
		return nil, errors.NotValidf("nil gate")
	}
	flag := &Flag{
		// Taking the change channel before reading the state means a
		// racing transition can only make us bounce early, never
		// report stale state forever.
		changed: w.Changes(),
		open:    w.IsOpen(),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &flag.catacomb,
		Work: flag.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return flag, nil
}

// Kill is part of the worker.Worker interface.
func (flag *Flag) Kill() {
	flag.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (flag *Flag) Wait() error {
	return flag.catacomb.Wait()
}

// Check is part of the Checker interface. The result is valid only for
// the lifetime of the worker; once the worker has stopped, no
// inferences may be drawn from any Check result.
func (flag *Flag) Check() bool {
	return flag.open
}

func (flag *Flag) loop() error {
	select {
	case <-flag.catacomb.Dying():
		return flag.catacomb.ErrDying()
	case <-flag.changed:
		logger.Debugf("gate state changed")
		return ErrChanged
	}
}

// FlagManifoldConfig holds the dependencies required to run a Flag
// worker in a dependency.Engine.
type FlagManifoldConfig struct {
	// GateName is the name of the manifold exposing the gate to
	// watch.
	GateName string

	// NewWorker creates a Flag worker; in practice this should almost
	// always be NewFlag.
	NewWorker func(w Waiter) (worker.Worker, error)
}

// FlagManifold runs a Flag worker, exposed as a Checker, and restarts
// any dependent manifolds whenever the gate changes state.
func FlagManifold(config FlagManifoldConfig) dependency.Manifold {
	return dependency.Manifold{
		Inputs: []string{config.GateName},
		Start: func(ctx context.Context, getter dependency.Getter) (worker.Worker, error) {
			var w Waiter
			if err := getter.Get(config.GateName, &w); err != nil {
				return nil, errors.Trace(err)
			}
			flag, err := config.NewWorker(w)
			if err != nil {
				return nil, errors.Trace(err)
			}
			return flag, nil
		},
		Output: func(in worker.Worker, out interface{}) error {
			inFlag, ok := in.(*Flag)
			if !ok {
				return errors.Errorf("expected in to implement Checker; got a %T", in)
			}
			outChecker, ok := out.(*Checker)
			if !ok {
				return errors.Errorf("expected out to be a *Checker; got a %T", out)
			}
			*outChecker = inFlag
			return nil
		},
		Filter: func(err error) error {
			if errors.Cause(err) == ErrChanged {
				return dependency.ErrBounce
			}
			return err
		},
	}
}
