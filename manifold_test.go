// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gate_test

import (
	"context"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4"
	dt "github.com/juju/worker/v4/dependency/testing"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/juju/gate"
)

type ManifoldSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&ManifoldSuite{})

func (*ManifoldSuite) TestManifoldStartBadConfig(c *gc.C) {
	manifold := gate.Manifold(gate.ManifoldConfig{})
	worker, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Check(worker, gc.IsNil)
	c.Check(err, gc.ErrorMatches, "nil Clock not valid")
}

func (*ManifoldSuite) TestManifoldStartSuccess(c *gc.C) {
	manifold := gate.Manifold(gate.ManifoldConfig{
		Clock: testclock.NewClock(time.Time{}),
	})
	worker, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, worker)
	workertest.CheckAlive(c, worker)
}

func (*ManifoldSuite) TestManifoldOutputs(c *gc.C) {
	manifold := gate.Manifold(gate.ManifoldConfig{
		Clock: testclock.NewClock(time.Time{}),
		Open:  false,
	})
	worker, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, worker)

	var waiter gate.Waiter
	c.Assert(manifold.Output(worker, &waiter), jc.ErrorIsNil)
	var controller gate.Controller
	c.Assert(manifold.Output(worker, &controller), jc.ErrorIsNil)

	// Both outputs view the same gate.
	c.Check(waiter.IsOpen(), jc.IsFalse)
	c.Check(controller.Open(), jc.IsTrue)
	c.Check(waiter.IsOpen(), jc.IsTrue)
}

func (*ManifoldSuite) TestManifoldOutputBadWorker(c *gc.C) {
	manifold := gate.Manifold(gate.ManifoldConfig{
		Clock: testclock.NewClock(time.Time{}),
	})
	var waiter gate.Waiter
	err := manifold.Output(&dummyWorker{}, &waiter)
	c.Check(err, gc.ErrorMatches, `expected in to be a \*gateWorker; got a .*`)
}

func (*ManifoldSuite) TestManifoldOutputBadTarget(c *gc.C) {
	manifold := gate.Manifold(gate.ManifoldConfig{
		Clock: testclock.NewClock(time.Time{}),
	})
	worker, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, worker)

	var out interface{}
	err = manifold.Output(worker, &out)
	c.Check(err, gc.ErrorMatches, `expected out to be a \*Waiter or a \*Controller; got a .*`)
}

func (*ManifoldSuite) TestManifoldExNilGate(c *gc.C) {
	manifold := gate.ManifoldEx(nil)
	worker, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Check(worker, gc.IsNil)
	c.Check(err, gc.ErrorMatches, "nil gate not valid")
}

func (*ManifoldSuite) TestManifoldExSharesGate(c *gc.C) {
	g := newTestGate(c, false)
	manifold := gate.ManifoldEx(g)

	workerA, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, workerA)
	workerB, err := manifold.Start(context.Background(), dt.StubGetter(nil))
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, workerB)

	var controller gate.Controller
	c.Assert(manifold.Output(workerA, &controller), jc.ErrorIsNil)
	var waiter gate.Waiter
	c.Assert(manifold.Output(workerB, &waiter), jc.ErrorIsNil)

	c.Check(controller.Open(), jc.IsTrue)
	c.Check(waiter.IsOpen(), jc.IsTrue)
	c.Check(g.IsOpen(), jc.IsTrue)
}

var _ worker.Worker = (*gate.Flag)(nil)
