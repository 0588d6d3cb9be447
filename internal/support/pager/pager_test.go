package pager

import (
	"testing"

	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// settle stands in for the run loop: it steps the mutex mediator, resumes
// faulter's in-flight fault, and lets the SSI service any DoIO request,
// until none of them can progress without a device completion.
func settle(ctx *nucleus.Context, p *Pager, faulter pcb.Handle) {
	for i := 0; i < 4; i++ {
		p.MediatorStepper().Step(ctx)
		if p.InFlight(faulter) {
			p.Resume(ctx, faulter)
		}
		ctx.RunSSI()
	}
}

// completeFlashIO drives the hardware half of a flash DoIO round trip:
// post a ready status on flash sub-device dev and deliver the completion
// interrupt.
func completeFlashIO(t *testing.T, ctx *nucleus.Context, dev int) {
	t.Helper()
	reg := ctx.Bus.Register(devices.LineFlash, dev)
	reg.SetStatus(devices.StatusReady)
	ctx.Bus.SetPending(devices.LineFlash, dev)
	if err := ctx.HandleInterrupt(); err != nil {
		t.Fatalf("HandleInterrupt: %v", err)
	}
}

func newFaulter(ctx *nucleus.Context, asid uint32, vpn int) pcb.Handle {
	h := ctx.SpawnServer()
	entry := ctx.Pool.Get(h)
	entry.Support = &pcb.Support{
		ASID:      asid,
		PageTable: mips.NewPageTable(asid),
	}
	entry.Support.PageFaultSaved.EntryHI = uint32(vpn) << mips.PFNShift
	return h
}

// TestPagerLoadsIntoFreeFrame exercises the no-victim path (§4.7 steps
// 2,3,6-10): a pool with a free frame skips straight to the read-in.
func TestPagerLoadsIntoFreeFrame(t *testing.T) {
	ctx := nucleus.NewContext(nucleus.Config{MaxProc: 8, MaxMessages: 8}, nil)
	ssi := ctx.NewSSI()
	p := New(ctx, 1, ssi)

	faulter := newFaulter(ctx, 1, 3)
	p.Begin(ctx, faulter)
	settle(ctx, p, faulter)

	completeFlashIO(t, ctx, 0) // ASID 1 -> dev index 0
	settle(ctx, p, faulter)

	entry := ctx.Pool.Get(faulter)
	pte := entry.Support.PageTable[3]
	if !pte.Valid() {
		t.Fatalf("page table entry for vpn 3 not validated after load")
	}
	if p.InFlight(faulter) {
		t.Fatalf("fault still in flight after completion")
	}
}

// TestPagerEvictsVictimOnFullPool forces a second fault into a one-frame
// pool already occupied by a different ASID's page, exercising the
// writeback half of afterGrant (§4.7 step 5) before the read-in.
func TestPagerEvictsVictimOnFullPool(t *testing.T) {
	ctx := nucleus.NewContext(nucleus.Config{MaxProc: 8, MaxMessages: 8}, nil)
	ssi := ctx.NewSSI()
	p := New(ctx, 1, ssi)

	first := newFaulter(ctx, 1, 0)
	p.Begin(ctx, first)
	settle(ctx, p, first)
	completeFlashIO(t, ctx, 0)
	settle(ctx, p, first)

	marker := p.Pool.Data(0)
	marker[0] = 0xAB

	second := newFaulter(ctx, 2, 5)
	p.Begin(ctx, second)
	settle(ctx, p, second)

	if !p.InFlight(second) {
		t.Fatalf("second faulter should still be waiting on writeback")
	}
	completeFlashIO(t, ctx, 0) // writeback of victim's ASID (1 -> dev 0)
	settle(ctx, p, second)
	if !p.InFlight(second) {
		t.Fatalf("second faulter should still be waiting on read-in")
	}
	completeFlashIO(t, ctx, 1) // read-in on the faulter's own ASID (2 -> dev 1)
	settle(ctx, p, second)

	if p.InFlight(second) {
		t.Fatalf("fault still in flight after read-in completion")
	}

	firstEntry := ctx.Pool.Get(first)
	if firstEntry.Support.PageTable[0].Valid() {
		t.Fatalf("evicted victim's page table entry should be invalidated")
	}

	saved := make([]byte, devices.PAGESIZE)
	if err := p.BackingStore(1).ReadBlock(0, saved); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if saved[0] != 0xAB {
		t.Fatalf("victim's frame contents were not written back to its backing store")
	}
}

// TestPagerFailsOnIOError implements §4.9's "any flash error is a
// program trap" for a page fault: a non-ready completion status
// terminates the faulter instead of completing the load.
func TestPagerFailsOnIOError(t *testing.T) {
	ctx := nucleus.NewContext(nucleus.Config{MaxProc: 8, MaxMessages: 8}, nil)
	ssi := ctx.NewSSI()
	p := New(ctx, 1, ssi)

	faulter := newFaulter(ctx, 1, 0)
	p.Begin(ctx, faulter)
	settle(ctx, p, faulter)

	reg := ctx.Bus.Register(devices.LineFlash, 0)
	reg.SetStatus(devices.StatusDeviceError)
	ctx.Bus.SetPending(devices.LineFlash, 0)
	if err := ctx.HandleInterrupt(); err != nil {
		t.Fatalf("HandleInterrupt: %v", err)
	}
	settle(ctx, p, faulter)

	if p.InFlight(faulter) {
		t.Fatalf("fault should have been abandoned, not left in flight")
	}
	if ctx.Pool.IsLive(faulter) {
		t.Fatalf("faulter should have been terminated on I/O error")
	}
}
