package pager

import (
	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
)

// Mediator is the "mutex process" of §4.7: receive any request -> send an
// empty grant -> receive the release from that same grantee -> repeat.
// Because every request and release lands in the mediator's own inbox in
// arrival order, and the release receive is filtered to the current
// grantee specifically, this gives strict mutual exclusion with FIFO
// fairness among waiters using nothing but the same Send/Receive
// primitives everything else in the kernel uses — no second
// synchronization primitive, per the design notes.
type Mediator struct {
	Self pcb.Handle

	// pendingGrantee is pcb.Nil between exchanges; otherwise the grantee
	// Step is currently waiting on a release from. This is the mediator's
	// own "which step of its loop it was on" scratch, kept here rather
	// than on the PCB since exactly one Mediator exists per kernel.
	pendingGrantee pcb.Handle
}

// NewMediator allocates and registers the mutex-mediator PCB.
func NewMediator(ctx *nucleus.Context) *Mediator {
	return &Mediator{Self: ctx.SpawnServer()}
}

// Step drains the mediator's inbox, granting and waiting for release one
// exchange at a time, until a receive would block. A blocked wait for a
// release suspends the mediator (which invokes the scheduler); a blocked
// wait for a new request simply returns to the run loop, exactly like
// nucleus.Context.RunSSI.
func (m *Mediator) Step(ctx *nucleus.Context) {
	for {
		if m.pendingGrantee != pcb.Nil {
			rel := ctx.TryReceive(m.Self, m.pendingGrantee)
			if rel.Blocked {
				ctx.Suspend(m.Self)
				return
			}
			m.pendingGrantee = pcb.Nil
			continue
		}

		req := ctx.TryReceive(m.Self, nucleus.Any)
		if req.Blocked {
			return
		}
		ctx.SendMessage(m.Self, req.Sender, struct{}{})
		m.pendingGrantee = req.Sender
	}
}
