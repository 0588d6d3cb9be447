package pcb

import "errors"

// ErrExhausted is returned by Alloc when the fixed-capacity pool has no
// free PCB left (§4.1, "FAIL_EXHAUSTED").
var ErrExhausted = errors.New("pcb: pool exhausted")

// Pool is the fixed-capacity arena of MAXPROC PCBs plus its free-list and
// monotonic PID counter (§2 "Pools & queues").
type Pool struct {
	arena   []PCB // index 0 is the permanent null sentinel, never allocated
	freeHd  Handle
	nextPID uint64
}

// NewPool builds a pool with capacity maxproc (MAXPROC).
func NewPool(maxproc int) *Pool {
	p := &Pool{arena: make([]PCB, maxproc+1)}
	// Thread the free-list through every real slot, 1..maxproc.
	for i := 1; i <= maxproc; i++ {
		p.arena[i].handle = Handle(i)
		if i < maxproc {
			p.arena[i].freeNext = Handle(i + 1)
		} else {
			p.arena[i].freeNext = Nil
		}
	}
	p.freeHd = Handle(1)
	return p
}

// Get resolves a handle to its PCB. The zero handle resolves to nil.
func (p *Pool) Get(h Handle) *PCB {
	if h == Nil {
		return nil
	}
	return &p.arena[h]
}

// Cap returns the pool's fixed capacity (MAXPROC).
func (p *Pool) Cap() int { return len(p.arena) - 1 }

// IsLive reports whether h currently names an allocated PCB, as opposed
// to a free (dead) slot or the null handle (§4.4's DEST_NOT_EXIST check).
func (p *Pool) IsLive(h Handle) bool {
	if h == Nil || int(h) >= len(p.arena) {
		return false
	}
	return p.arena[h].inUse
}

// LiveCount returns the number of currently allocated PCBs.
func (p *Pool) LiveCount() int {
	n := 0
	for i := 1; i < len(p.arena); i++ {
		if p.arena[i].inUse {
			n++
		}
	}
	return n
}

// Alloc returns a fresh PCB with every field zeroed, its intrusive links
// empty, and a new monotonic PID, or ErrExhausted.
func (p *Pool) Alloc() (*PCB, error) {
	if p.freeHd == Nil {
		return nil, ErrExhausted
	}
	h := p.freeHd
	entry := &p.arena[h]
	p.freeHd = entry.freeNext

	p.nextPID++
	*entry = PCB{
		handle: h,
		inUse:  true,
		PID:    p.nextPID,
	}
	return entry, nil
}

// Free returns p to the free-list. Precondition (caller's responsibility,
// matching the spec): p is not on any queue, has no children, no parent.
func (p *Pool) Free(h Handle) {
	if h == Nil {
		return
	}
	entry := &p.arena[h]
	saved := entry.handle
	*entry = PCB{handle: saved, freeNext: p.freeHd}
	p.freeHd = saved
}
