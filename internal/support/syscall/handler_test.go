package syscall

import (
	"testing"

	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

func newHandlerTestContext() *nucleus.Context {
	return nucleus.NewContext(nucleus.Config{MaxProc: 8, MaxMessages: 8}, nil)
}

func newUser(ctx *nucleus.Context, parent pcb.Handle) pcb.Handle {
	h := ctx.SpawnServer()
	entry := ctx.Pool.Get(h)
	entry.Support = &pcb.Support{}
	entry.Parent = parent
	return h
}

func syscallState(code int32, a1, a2 uint32) mips.State {
	var s mips.State
	s.Cause = mips.SetExcCode(0, mips.ExcSyscall)
	s.WriteReg(mips.RegA0, uint32(code))
	s.WriteReg(mips.RegA1, a1)
	s.WriteReg(mips.RegA2, a2)
	return s
}

// TestHandlerSendMsgRoutesToParentSentinel confirms a1==ParentSentinel
// routes through the caller's own parent (§4.8).
func TestHandlerSendMsgRoutesToParentSentinel(t *testing.T) {
	ctx := newHandlerTestContext()
	parent := ctx.SpawnServer()
	user := newUser(ctx, parent)
	ctx.Pool.Get(user).Support.GeneralSaved = syscallState(SendMsg, uint32(ParentSentinel), 42)

	h := New()
	h.Handle(ctx, user)

	res := ctx.TryReceive(parent, user)
	if res.Blocked {
		t.Fatalf("parent never received the routed SendMsg")
	}
	if res.Payload.(uint32) != 42 {
		t.Fatalf("payload = %v, want 42", res.Payload)
	}

	entry := ctx.Pool.Get(user)
	if entry.State.ReadReg(mips.RegV0) != uint32(nucleus.RCOk) {
		t.Fatalf("v0 = %d, want RCOk", entry.State.ReadReg(mips.RegV0))
	}
	if entry.State.PC != 4 {
		t.Fatalf("PC = %d, want 4 (advanced past the syscall)", entry.State.PC)
	}
}

// TestHandlerReceiveMsgBlocksThenResumes exercises the pending-map path:
// a ReceiveMsg against an empty inbox suspends, and a later Resume call
// (once a Send has landed) completes it.
func TestHandlerReceiveMsgBlocksThenResumes(t *testing.T) {
	ctx := newHandlerTestContext()
	user := newUser(ctx, pcb.Nil)
	sender := ctx.SpawnServer()
	ctx.Pool.Get(user).Support.GeneralSaved = syscallState(ReceiveMsg, uint32(nucleus.Any), 0)

	h := New()
	h.Handle(ctx, user)

	if !h.InFlight(user) {
		t.Fatalf("ReceiveMsg against an empty inbox should be in flight")
	}

	ctx.SendMessage(sender, user, uint32(99))
	h.Resume(ctx, user)

	if h.InFlight(user) {
		t.Fatalf("still in flight after a matching message arrived")
	}
	entry := ctx.Pool.Get(user)
	if entry.State.ReadReg(mips.RegV0) != uint32(sender) {
		t.Fatalf("v0 = %d, want sender handle %d", entry.State.ReadReg(mips.RegV0), sender)
	}
	if entry.LastPayload.(uint32) != 99 {
		t.Fatalf("LastPayload = %v, want 99", entry.LastPayload)
	}
}

// TestHandlerNonSyscallExceptionTerminates confirms the support-level
// handler's pass-up-or-die fallback: anything other than a syscall
// exception kills the process instead of servicing it.
func TestHandlerNonSyscallExceptionTerminates(t *testing.T) {
	ctx := newHandlerTestContext()
	user := newUser(ctx, pcb.Nil)
	var saved mips.State
	saved.Cause = mips.SetExcCode(0, mips.ExcAddrErrLoad)
	ctx.Pool.Get(user).Support.GeneralSaved = saved

	h := New()
	h.Handle(ctx, user)

	if ctx.Pool.IsLive(user) {
		t.Fatalf("process should have been terminated on a non-syscall general exception")
	}
}

// TestHandlerUnknownSyscallCodeTerminates confirms only SendMsg/ReceiveMsg
// are serviced; any other a0 value is treated as a program trap.
func TestHandlerUnknownSyscallCodeTerminates(t *testing.T) {
	ctx := newHandlerTestContext()
	user := newUser(ctx, pcb.Nil)
	ctx.Pool.Get(user).Support.GeneralSaved = syscallState(99, 0, 0)

	h := New()
	h.Handle(ctx, user)

	if ctx.Pool.IsLive(user) {
		t.Fatalf("process should have been terminated on an unrecognized syscall code")
	}
}
