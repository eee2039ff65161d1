// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package gate

// Hooks is notified of the fate of each WaitForOpen call, on the
// calling goroutine and outside the gate's lock. The owner of a gate
// supplies an implementation to observe traffic through it; counting
// parked deliverers, say, or logging that entrants are being held up.
type Hooks interface {
	// OnWait is called when a caller finds the gate closed and is
	// about to wait, however briefly.
	OnWait()

	// OnEntry is called when a caller passes through the open gate.
	OnEntry()

	// OnAbort is called when a caller is rejected by the aborted
	// gate.
	OnAbort()
}

// HookFuncs adapts plain functions to the Hooks interface. Nil fields
// are no-ops.
type HookFuncs struct {
	Wait  func()
	Entry func()
	Abort func()
}

// OnWait is part of the Hooks interface.
func (h HookFuncs) OnWait() {
	if h.Wait != nil {
		h.Wait()
	}
}

// OnEntry is part of the Hooks interface.
func (h HookFuncs) OnEntry() {
	if h.Entry != nil {
		h.Entry()
	}
}

// OnAbort is part of the Hooks interface.
func (h HookFuncs) OnAbort() {
	if h.Abort != nil {
		h.Abort()
	}
}

type nopHooks struct{}

func (nopHooks) OnWait()  {}
func (nopHooks) OnEntry() {}
func (nopHooks) OnAbort() {}
