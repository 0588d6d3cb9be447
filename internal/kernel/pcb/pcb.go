// Package pcb implements the kernel's process-control-block pool: a fixed
// capacity arena of PCBs, queues, and the parent/child/sibling tree (§3,
// §4.1). Per the design notes, PCBs are addressed by stable arena index
// rather than pointer — a Handle is the nucleus's typed stand-in for the
// "PCB pointer" the original machine passes around as a bare machine word.
package pcb

import "github.com/pandos-kernel/pandos/internal/mips"

// Handle is a 1-based index into a Pool's backing arena; zero is the null
// handle, matching the spec's "NULL" PCB pointer.
type Handle int

const Nil Handle = 0

// Support is the per-process support structure (§3): ASID, private page
// table, and the two (context, saved-state) pairs a pass-up lands in.
type Support struct {
	ASID      uint32
	PageTable mips.PageTable

	PageFaultContext mips.Context
	PageFaultSaved   mips.State

	GeneralContext mips.Context
	GeneralSaved   mips.State
}

// Kind records which schedulability queue (if any) a PCB is on, so that
// free_pcb's precondition ("not on any queue") and the "on at most one
// queue" invariant are both cheap to check.
type Kind int

const (
	KindNone Kind = iota
	KindReady
	KindBlocked // device queue or pseudo-clock queue
	KindRunning
)

// PCB is the sole representation of a schedulable entity (§3).
type PCB struct {
	handle Handle // this PCB's own handle, stable across its live interval
	inUse  bool

	State    mips.State
	CPUTime  uint64 // accumulated CPU time, in the same units DispatchTime is measured
	PID      uint64
	Support  *Support

	// LastPayload is where a completed ReceiveMessage deposits its payload
	// for this PCB to read. The real hardware would have ReceiveMsg write
	// through the a2 out-pointer into the caller's own memory; since this
	// simulation has no general-purpose addressable RAM for user data,
	// LastPayload is the typed stand-in for that out-pointer target.
	LastPayload any

	// Local is a per-role scratch slot a server PCB (SSI, mutex mediator,
	// SST, device proxy) uses to remember which step of its loop it was
	// on across dispatches, since a blocking ReceiveMessage call returns
	// control to the scheduler rather than suspending a call stack.
	Local any

	// PendingPassUp/HasPendingPassUp record that a pass-up-or-die just
	// copied saved state into this PCB's support slot for the named
	// category; the support-level dispatcher consumes and clears this on
	// the PCB's next turn (its stand-in for "resumed execution at the
	// support handler's PC").
	PendingPassUp    mips.PassUpCategory
	HasPendingPassUp bool

	Parent   Handle
	Child    Handle // first child
	Sibling  Handle // next sibling

	// Intrusive doubly-linked queue membership.
	kind       Kind
	prev, next Handle
	// BlockedOnDevice is only meaningful while kind == KindBlocked and the
	// PCB sits on a device queue (not the pseudo-clock queue); it records
	// the sub-device index for the interrupt handler's FIFO-unblock.
	BlockedOnDevice int
	blockedOnDeviceValid bool

	// freeNext threads the free-list; only meaningful while !inUse.
	freeNext Handle
}

// Handle returns p's own stable handle.
func (p *PCB) Handle() Handle { return p.handle }

// OnQueue reports whether p currently occupies a schedulability queue
// slot (ready or blocked) as opposed to running or free.
func (p *PCB) OnQueue() bool {
	return p.kind == KindReady || p.kind == KindBlocked
}

// Kind returns the PCB's current schedulability-queue membership kind.
func (p *PCB) Kind() Kind { return p.kind }

// SetBlockedOnDevice / ClearBlockedOnDevice manage the device-queue index,
// valid only while the PCB sits on a device queue (§3 invariant).
func (p *PCB) SetBlockedOnDevice(dev int) {
	p.BlockedOnDevice = dev
	p.blockedOnDeviceValid = true
}

func (p *PCB) ClearBlockedOnDevice() {
	p.blockedOnDeviceValid = false
}

func (p *PCB) HasBlockedOnDevice() bool { return p.blockedOnDeviceValid }
