// Package syscall implements the support level's general-exception
// handler and its two positive-numbered syscalls, SendMsg and ReceiveMsg
// (§4.8). It is the support-level counterpart of the nucleus's own
// kernel-mode Send/Receive (internal/kernel/nucleus/syscall.go), reusing
// the same message primitives instead of inventing a second IPC path.
package syscall

import (
	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// Support-level syscall codes, chosen by a0 (§4.8).
const (
	SendMsg    int32 = 1
	ReceiveMsg int32 = 2
)

// ParentSentinel is the a1 value SendMsg interprets as "route to my
// parent" (a user process's SST is always its parent, §4.8). It aliases
// pcb.Nil deliberately: a1 can otherwise only name a live PCB.
const ParentSentinel = pcb.Nil

// Handler drives every in-flight blocking ReceiveMsg across dispatches,
// the same resumable-state-machine shape pager.Pager uses for page
// faults.
type Handler struct {
	pending map[pcb.Handle]pcb.Handle // self -> sender filter it's waiting on
}

func New() *Handler {
	return &Handler{pending: make(map[pcb.Handle]pcb.Handle)}
}

// InFlight reports whether self has a ReceiveMsg still waiting for a
// matching message.
func (h *Handler) InFlight(self pcb.Handle) bool {
	_, ok := h.pending[self]
	return ok
}

// Handle implements the support-level general-exception handler (§4.8):
// it decodes cause.excCode exactly like the nucleus dispatcher, but only
// services syscall (8) itself — everything else is cleaned up and
// terminated, mirroring the nucleus's own pass-up-or-die for the "no
// support structure" case, one level down.
func (h *Handler) Handle(ctx *nucleus.Context, self pcb.Handle) {
	entry := ctx.Pool.Get(self)
	saved := entry.Support.GeneralSaved

	if mips.ExcCode(saved.Cause) != mips.ExcSyscall {
		ctx.TerminateProcess(self, self)
		ctx.Schedule()
		return
	}

	switch int32(saved.A0()) {
	case SendMsg:
		dest := pcb.Handle(saved.A1())
		if dest == ParentSentinel {
			dest = entry.Parent
		}
		rc := ctx.SendMessage(self, dest, saved.A2())
		h.finish(ctx, self, saved, uint32(rc))

	case ReceiveMsg:
		filter := pcb.Handle(saved.A1())
		res := ctx.TryReceive(self, filter)
		if res.Blocked {
			h.pending[self] = filter
			entry.State = saved
			ctx.Suspend(self)
			return
		}
		entry.LastPayload = res.Payload
		h.finish(ctx, self, saved, uint32(res.Sender))

	default:
		ctx.TerminateProcess(self, self)
		ctx.Schedule()
	}
}

// Resume completes a ReceiveMsg that blocked on an earlier Handle call,
// once self has been re-dispatched (meaning a matching Send has arrived,
// since nothing else makes a parked PCB ready again).
func (h *Handler) Resume(ctx *nucleus.Context, self pcb.Handle) {
	filter := h.pending[self]
	entry := ctx.Pool.Get(self)
	res := ctx.TryReceive(self, filter)
	if res.Blocked {
		ctx.Suspend(self)
		return
	}
	delete(h.pending, self)
	entry.LastPayload = res.Payload
	h.finish(ctx, self, entry.Support.GeneralSaved, uint32(res.Sender))
}

// finish implements §4.8's "on return, the saved PC is advanced one word
// to skip the syscall instruction", then resumes the user process.
func (h *Handler) finish(ctx *nucleus.Context, self pcb.Handle, saved mips.State, v0 uint32) {
	entry := ctx.Pool.Get(self)
	saved.PC += 4
	saved.SetV0(v0)
	entry.State = saved
	ctx.BIOS.LDST(&entry.State)
}
