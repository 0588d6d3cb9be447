package nucleus

import (
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// RaiseException is the single entry the hardware invokes on any
// exception (§4.3): it deposits the faulting state on the BIOS data page
// and routes by exception code.
func (c *Context) RaiseException(state mips.State) error {
	c.BIOS.LDST(&state)
	code := mips.ExcCode(state.Cause)

	switch code {
	case mips.ExcInterrupt:
		return c.HandleInterrupt()
	case mips.ExcSyscall:
		return c.handleSyscall(state)
	case mips.ExcTLBInvalidLoad, mips.ExcTLBInvalidStore:
		if c.TLBRefill(state) {
			c.BIOS.LDST(&state)
			return nil
		}
		return c.passUpOrDie(mips.CategoryTLB, state)
	default:
		return c.passUpOrDie(mips.CategoryFor(code), state)
	}
}

// TLBRefill implements §2/§4.7's hardware TLB-refill handler: read the
// missing VPN out of the saved entry-hi, clamp it, and copy the running
// process's corresponding page-table entry into a write-random TLB slot.
// It reports whether the freshly installed entry is valid. A valid entry
// means the miss was spurious — the page is mapped but had aged out of
// the small hardware TLB — and the faulting instruction can simply be
// retried; an invalid entry is a genuine page fault the caller must pass
// up to the pager.
func (c *Context) TLBRefill(saved mips.State) bool {
	running := c.Pool.Get(c.Running)
	if running.Support == nil {
		return false
	}
	vpn := mips.VPNFromEntryHI(saved.EntryHI)
	pte := running.Support.PageTable[vpn]
	c.MMU.WriteRandom(pte)
	return pte.Valid()
}

// passUpOrDie implements §4.3's policy: if the running PCB has no support
// structure, it (and its whole subtree) is terminated and the scheduler
// is invoked; otherwise the saved state is copied into the process's
// support slot for this category and execution resumes at the support
// handler's (SP, status, PC).
func (c *Context) passUpOrDie(cat mips.PassUpCategory, state mips.State) error {
	running := c.Pool.Get(c.Running)
	if running.Support == nil {
		victim := c.Running
		c.Running = pcb.Nil
		c.TerminateProcess(victim, victim)
		c.Schedule()
		return nil
	}

	var ctx mips.Context
	switch cat {
	case mips.CategoryTLB:
		running.Support.PageFaultSaved = state
		ctx = running.Support.PageFaultContext
	default:
		running.Support.GeneralSaved = state
		ctx = running.Support.GeneralContext
	}
	running.PendingPassUp = cat
	running.HasPendingPassUp = true

	running.State.PC = ctx.PC
	running.State.Status = ctx.Status
	running.State.Reg[mips.RegSP] = ctx.StackPtr
	c.BIOS.LDST(&running.State)
	return nil
}

// handleSyscall decodes a0 for exception code 8 (§4.4). A kernel-only
// syscall attempted from user mode is a privileged-instruction fault,
// passed up as a general exception; in kernel mode, -1/-2 dispatch to
// SendMessage/ReceiveMessage directly, and anything else is an illegal
// operation, also passed up (§7).
func (c *Context) handleSyscall(state mips.State) error {
	running := c.Pool.Get(c.Running)

	if state.Status&mips.StatusKUc != 0 {
		state.Cause = mips.SetExcCode(state.Cause, mips.ExcPrivilegedInstr)
		return c.passUpOrDie(mips.CategoryGeneral, state)
	}

	switch int32(state.A0()) {
	case SyscallSend:
		dest := pcb.Handle(state.A1())
		rc := c.SendMessage(c.Running, dest, state.A2())
		running.State = state
		running.State.SetV0(uint32(rc))
		c.BIOS.LDST(&running.State)
		return nil

	case SyscallReceive:
		filter := pcb.Handle(state.A1())
		res := c.TryReceive(c.Running, filter)
		if !res.Blocked {
			running.State = state
			running.State.SetV0(uint32(res.Sender))
			running.LastPayload = res.Payload
			c.BIOS.LDST(&running.State)
			return nil
		}
		running.State = state
		c.Suspend(c.Running)
		return nil

	default:
		return c.passUpOrDie(mips.CategoryGeneral, state)
	}
}
