// Package pager implements the support level's demand pager, its swap
// pool, and the mutex-mediator process that serializes access to it
// (§4.7). It is the support-level counterpart to the nucleus's SSI: a
// page fault is the spec's TLB-invalid-load/store pass-up, routed here
// instead of to the nucleus.
package pager

import (
	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// Frame is one physical RAM frame the swap pool multiplexes among user
// processes (§3 "Swap pool table").
type Frame struct {
	used bool
	asid uint32
	vpn  int
	pte  *mips.PTE // back-pointer into the owning PCB's page table

	// Data is the frame's physical contents — the bytes a real DMA
	// transfer would move between this frame and a flash block.
	Data [devices.PAGESIZE]byte
}

// SwapPool is the fixed-capacity (POOLSIZE) table of physical frames
// mediated by a single mutex process (§3, §4.7).
type SwapPool struct {
	frames []Frame
	rr     int // victim counter; deterministic modulo-POOLSIZE, starts at slot 0 (§9 open question)
}

// NewSwapPool builds a pool of size frames, all initially unused.
func NewSwapPool(size int) *SwapPool {
	return &SwapPool{frames: make([]Frame, size)}
}

func (s *SwapPool) Size() int { return len(s.frames) }

// PickVictim implements §4.7 step 4: the first unused slot if any, else
// the round-robin counter modulo POOLSIZE. The counter only advances when
// an already-occupied frame is actually chosen.
func (s *SwapPool) PickVictim() int {
	for i := range s.frames {
		if !s.frames[i].used {
			return i
		}
	}
	v := s.rr % len(s.frames)
	s.rr++
	return v
}

// Owner reports frame i's current occupant, if any.
func (s *SwapPool) Owner(i int) (asid uint32, vpn int, pte *mips.PTE, used bool) {
	f := &s.frames[i]
	return f.asid, f.vpn, f.pte, f.used
}

// Occupy records frame i as owned by (asid, vpn), back-pointing at pte —
// §4.7 step 7.
func (s *SwapPool) Occupy(i int, asid uint32, vpn int, pte *mips.PTE) {
	s.frames[i] = Frame{used: true, asid: asid, vpn: vpn, pte: pte, Data: s.frames[i].Data}
}

// Data returns a pointer to frame i's physical contents.
func (s *SwapPool) Data(i int) *[devices.PAGESIZE]byte {
	return &s.frames[i].Data
}

// ReleaseASID marks every frame owned by asid unused, for SST's Terminate
// service (§4.8): a terminated user process's frames become immediately
// reusable rather than waiting for the round-robin counter to reach them.
func (s *SwapPool) ReleaseASID(asid uint32) {
	for i := range s.frames {
		if s.frames[i].used && s.frames[i].asid == asid {
			s.frames[i].used = false
			s.frames[i].pte = nil
		}
	}
}
