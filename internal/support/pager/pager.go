package pager

import (
	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// step enumerates the pager's linear algorithm (§4.7 steps 2-10) as a
// resumable state machine: each blocking exchange (mutex grant, flash
// writeback completion, flash read-in completion) suspends the faulter
// and is resumed on its next dispatch, exactly the way the mutex
// mediator resumes a pending release.
type step int

const (
	stepRequestMutex step = iota
	stepAwaitGrant
	stepAwaitWriteback
	stepAwaitReadin
	stepReleaseMutex
)

type faultState struct {
	step       step
	vpn        int
	victim     int
	victimUsed bool
	victimASID uint32
	victimVPN  int
}

// Pager owns the swap pool and drives every in-flight page fault. One
// Pager instance serves every user process, the same way one SSI serves
// every kernel-mode request.
type Pager struct {
	SSI      pcb.Handle
	Mediator pcb.Handle
	Pool     *SwapPool

	// Flash holds each user ASID's backing store (§6 "Persisted state").
	Flash map[uint32]*devices.FlashStore

	mediator *Mediator
	pending  map[pcb.Handle]*faultState
}

// MediatorStepper returns the mutex-mediator process so a run loop can
// drive it on every dispatch, the same way it drives the SSI via RunSSI.
func (p *Pager) MediatorStepper() *Mediator {
	return p.mediator
}

// New builds a Pager of the given swap-pool size, wired to the nucleus's
// SSI (for flash DoIO) and a freshly spawned mutex mediator.
func New(ctx *nucleus.Context, poolSize int, ssi pcb.Handle) *Pager {
	m := NewMediator(ctx)
	return &Pager{
		SSI:      ssi,
		mediator: m,
		Mediator: m.Self,
		Pool:     NewSwapPool(poolSize),
		Flash:    make(map[uint32]*devices.FlashStore),
		pending:  make(map[pcb.Handle]*faultState),
	}
}

// ReleaseASID frees every swap-pool frame asid owns, for the SST's
// Terminate service (§4.8).
func (p *Pager) ReleaseASID(asid uint32) {
	p.Pool.ReleaseASID(asid)
}

// BackingStore returns (creating if necessary) asid's flash image.
func (p *Pager) BackingStore(asid uint32) *devices.FlashStore {
	fs, ok := p.Flash[asid]
	if !ok {
		fs = devices.NewFlashStore()
		p.Flash[asid] = fs
	}
	return fs
}

// InFlight reports whether h has a page fault already in progress, as
// opposed to a fresh pass-up that hasn't started the algorithm yet.
func (p *Pager) InFlight(h pcb.Handle) bool {
	_, ok := p.pending[h]
	return ok
}

// IsTLBModified implements §4.7 step 1's check: a TLB-modified exception
// is not a page fault at all and must be treated as a program trap by the
// caller (clean up and terminate the user process) instead of entering
// the pager.
func IsTLBModified(saved mips.State) bool {
	return mips.ExcCode(saved.Cause) == mips.ExcTLBModification
}

// Begin starts handling faulter's current page-fault pass-up (§4.7 steps
// 2 onward; step 1 is the caller's responsibility, see IsTLBModified).
func (p *Pager) Begin(ctx *nucleus.Context, faulter pcb.Handle) {
	entry := ctx.Pool.Get(faulter)
	vpn := mips.VPNFromEntryHI(entry.Support.PageFaultSaved.EntryHI)
	p.pending[faulter] = &faultState{step: stepRequestMutex, vpn: vpn}
	p.Resume(ctx, faulter)
}

// Resume drives the state machine as far as it can go without blocking,
// then either finishes the fault (reloading the user process at its
// saved exception state) or suspends faulter pending the next message.
func (p *Pager) Resume(ctx *nucleus.Context, faulter pcb.Handle) {
	st := p.pending[faulter]
	entry := ctx.Pool.Get(faulter)
	asid := entry.Support.ASID

	for {
		switch st.step {
		case stepRequestMutex:
			ctx.SendMessage(faulter, p.Mediator, struct{}{})
			st.step = stepAwaitGrant

		case stepAwaitGrant:
			res := ctx.TryReceive(faulter, p.Mediator)
			if res.Blocked {
				ctx.Suspend(faulter)
				return
			}
			if !p.afterGrant(ctx, faulter, st, asid) {
				return
			}
			if st.step == stepAwaitWriteback {
				continue
			}
			// no victim to evict: go straight to the read-in
			st.step = stepAwaitReadin
			p.issueReadIn(ctx, faulter, st, asid)
			continue

		case stepAwaitWriteback:
			res := ctx.TryReceive(faulter, p.SSI)
			if res.Blocked {
				ctx.Suspend(faulter)
				return
			}
			if !p.ioOK(res.Payload) {
				p.fail(ctx, faulter)
				return
			}
			st.step = stepAwaitReadin
			p.issueReadIn(ctx, faulter, st, asid)

		case stepAwaitReadin:
			res := ctx.TryReceive(faulter, p.SSI)
			if res.Blocked {
				ctx.Suspend(faulter)
				return
			}
			if !p.ioOK(res.Payload) {
				p.fail(ctx, faulter)
				return
			}
			if !p.finishLoad(ctx, faulter, st, asid) {
				return
			}
			st.step = stepReleaseMutex
			ctx.SendMessage(faulter, p.Mediator, struct{}{})
			continue

		case stepReleaseMutex:
			delete(p.pending, faulter)
			p.resumeUser(ctx, entry)
			return
		}
	}
}

// afterGrant implements §4.7 steps 4-5: pick a victim frame and, if
// occupied, invalidate it (PTE and TLB, "with interrupts disabled") and
// issue its writeback to flash. It reports whether the fault can proceed;
// on a backing-store write error it has already failed the faulter and
// the caller must stop driving the state machine.
func (p *Pager) afterGrant(ctx *nucleus.Context, faulter pcb.Handle, st *faultState, asid uint32) bool {
	victim := p.Pool.PickVictim()
	st.victim = victim
	vAsid, vVPN, vPTE, used := p.Pool.Owner(victim)
	if !used {
		return true
	}
	st.victimUsed = true
	st.victimASID, st.victimVPN = vAsid, vVPN

	*vPTE = mips.PTE{EntryHI: vPTE.EntryHI, EntryLO: 0}
	if idx, err := ctx.MMU.Probe(vPTE.EntryHI); err == nil {
		ctx.MMU.WriteIndexed(idx, *vPTE)
	}

	if err := p.BackingStore(vAsid).WriteBlock(vVPN, p.Pool.Data(victim)[:]); err != nil {
		p.fail(ctx, faulter)
		return false
	}

	cmd := devices.FlashCommand(vVPN, devices.CmdWriteBlock)
	ctx.SendMessage(faulter, p.SSI, nucleus.Request{
		Service: nucleus.SvcDoIO,
		Arg: nucleus.DoIOArgs{
			Line: devices.LineFlash, Dev: int(vAsid - 1), Command: cmd,
		},
	})
	st.step = stepAwaitWriteback
	return true
}

// issueReadIn implements §4.7 step 6: read page p of the faulting ASID's
// backing store into the victim frame.
func (p *Pager) issueReadIn(ctx *nucleus.Context, faulter pcb.Handle, st *faultState, asid uint32) {
	cmd := devices.FlashCommand(st.vpn, devices.CmdReadBlock)
	ctx.SendMessage(faulter, p.SSI, nucleus.Request{
		Service: nucleus.SvcDoIO,
		Arg: nucleus.DoIOArgs{
			Line: devices.LineFlash, Dev: int(asid - 1), Command: cmd,
		},
	})
}

// finishLoad implements §4.7 steps 7-8: copy the backing-store page into
// the frame, occupy the swap-pool slot, and validate the faulting PTE. It
// reports whether the fault can proceed; on a backing-store read error it
// has already failed the faulter and the caller must stop driving the
// state machine.
func (p *Pager) finishLoad(ctx *nucleus.Context, faulter pcb.Handle, st *faultState, asid uint32) bool {
	entry := ctx.Pool.Get(faulter)
	frameData := p.Pool.Data(st.victim)
	if err := p.BackingStore(asid).ReadBlock(st.vpn, frameData[:]); err != nil {
		p.fail(ctx, faulter)
		return false
	}

	pte := &entry.Support.PageTable[st.vpn]
	p.Pool.Occupy(st.victim, asid, st.vpn, pte)

	frameAddr := uint32(st.victim * devices.PAGESIZE)
	*pte = mips.PTE{
		EntryHI: pte.EntryHI,
		EntryLO: (frameAddr &^ 0xFFF) | mips.PTEValid | mips.PTEDirty | (pte.EntryLO & 0xFFF),
	}
	ctx.MMU.WriteRandom(*pte)
	return true
}

// resumeUser implements §4.7 step 10: reload the user process at its
// saved exception state, now that the faulting page is mapped.
func (p *Pager) resumeUser(ctx *nucleus.Context, entry *pcb.PCB) {
	entry.State = entry.Support.PageFaultSaved
	ctx.BIOS.LDST(&entry.State)
}

// fail implements the escalation of §4.9: any flash I/O error during
// paging is a program trap, terminating the user process (not the
// system).
func (p *Pager) fail(ctx *nucleus.Context, faulter pcb.Handle) {
	delete(p.pending, faulter)
	ctx.TerminateProcess(faulter, faulter)
	ctx.Schedule()
}

// ioOK interprets a DoIO completion payload the way §4.9 requires:
// anything other than the device's "ready"/success status is an error.
func (p *Pager) ioOK(payload any) bool {
	status, ok := payload.(uint32)
	if !ok {
		return false
	}
	return status == devices.StatusReady
}
