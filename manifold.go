// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gate

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/dependency"
	"gopkg.in/tomb.v2"
)

// ManifoldConfig holds the dependencies of a Manifold's private Gate.
type ManifoldConfig struct {
	// Clock supplies the timers used by the gate's waiters.
	Clock clock.Clock

	// Hooks, if set, observes traffic through the gate. It may be
	// nil.
	Hooks Hooks

	// Open is true if the gate starts open.
	Open bool
}

// Manifold returns a dependency.Manifold that runs a Gate, and exposes
// it as a Waiter and a Controller to other manifolds in the same
// engine.
func Manifold(config ManifoldConfig) dependency.Manifold {
	return dependency.Manifold{
		Start: func(_ context.Context, _ dependency.Getter) (worker.Worker, error) {
			g, err := New(Config{
				Clock: config.Clock,
				Hooks: config.Hooks,
				Open:  config.Open,
			})
			if err != nil {
				return nil, errors.Trace(err)
			}
			return newGateWorker(g), nil
		},
		Output: manifoldOutput,
	}
}

// ManifoldEx returns a manifold exposing a Gate created by the caller.
// Unlike Manifold, it allows the gate to be shared between several
// dependency engines, or controlled by code that is not a worker at
// all.
func ManifoldEx(g *Gate) dependency.Manifold {
	return dependency.Manifold{
		Start: func(_ context.Context, _ dependency.Getter) (worker.Worker, error) {
			if g == nil {
				return nil, errors.NotValidf("nil gate")
			}
			return newGateWorker(g), nil
		},
		Output: manifoldOutput,
	}
}

// gateWorker holds a Gate for the lifetime of an engine, and does
// nothing else.
type gateWorker struct {
	tomb tomb.Tomb
	gate *Gate
}

func newGateWorker(g *Gate) *gateWorker {
	w := &gateWorker{gate: g}
	w.tomb.Go(func() error {
		<-w.tomb.Dying()
		return nil
	})
	return w
}

// Kill is part of the worker.Worker interface.
func (w *gateWorker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *gateWorker) Wait() error {
	return w.tomb.Wait()
}

func manifoldOutput(in worker.Worker, out interface{}) error {
	inWorker, ok := in.(*gateWorker)
	if !ok {
		return errors.Errorf("expected in to be a *gateWorker; got a %T", in)
	}
	switch outPointer := out.(type) {
	case *Waiter:
		*outPointer = inWorker.gate
	case *Controller:
		*outPointer = inWorker.gate
	default:
		return errors.Errorf("expected out to be a *Waiter or a *Controller; got a %T", out)
	}
	return nil
}
