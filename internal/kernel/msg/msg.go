// Package msg implements the fixed-capacity message pool and per-PCB
// inbox queues used by asynchronous Send/Receive (§3 "Message", §4.1,
// §4.4).
package msg

import (
	"errors"

	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
)

// Handle is a 1-based arena index, mirroring pcb.Handle.
type Handle int

const Nil Handle = 0

// ErrExhausted is returned by Alloc when the message pool is full
// (surfaces to callers as MSGNOGOOD, §4.4, §7).
var ErrExhausted = errors.New("msg: pool exhausted")

// Message is a unit of asynchronous inter-PCB communication (§3).
type Message struct {
	handle Handle
	inUse  bool

	Sender pcb.Handle
	// Payload carries "a small status, a pointer to a request struct, or a
	// device status code" (§3) — in idiomatic Go, any of those is a value
	// of interface type rather than a reinterpreted machine word.
	Payload any

	prev, next Handle
	owner      pcb.Handle // which inbox this message currently sits in, 0 if free

	freeNext Handle
}

// Pool is the fixed-capacity (MAXMESSAGES) arena plus free-list, and every
// PCB's inbox as a head-sentinel FIFO keyed by owning PCB handle.
type Pool struct {
	arena  []Message
	freeHd Handle

	inboxHead, inboxTail map[pcb.Handle]Handle
}

func NewPool(maxmessages int) *Pool {
	p := &Pool{
		arena:     make([]Message, maxmessages+1),
		inboxHead: make(map[pcb.Handle]Handle),
		inboxTail: make(map[pcb.Handle]Handle),
	}
	for i := 1; i <= maxmessages; i++ {
		p.arena[i].handle = Handle(i)
		if i < maxmessages {
			p.arena[i].freeNext = Handle(i + 1)
		} else {
			p.arena[i].freeNext = Nil
		}
	}
	p.freeHd = Handle(1)
	return p
}

func (p *Pool) Get(h Handle) *Message {
	if h == Nil {
		return nil
	}
	return &p.arena[h]
}

// Alloc returns a fresh, zeroed message or ErrExhausted.
func (p *Pool) Alloc() (*Message, error) {
	if p.freeHd == Nil {
		return nil, ErrExhausted
	}
	h := p.freeHd
	m := &p.arena[h]
	p.freeHd = m.freeNext
	*m = Message{handle: h}
	return m, nil
}

// Free returns m to the pool's free-list. Precondition: m is not
// currently enqueued in any inbox.
func (p *Pool) Free(h Handle) {
	if h == Nil {
		return
	}
	m := &p.arena[h]
	saved := m.handle
	*m = Message{handle: saved, freeNext: p.freeHd}
	p.freeHd = saved
}

// Enqueue appends m to owner's inbox, tail-ordered (FIFO on arrival, §3).
func (p *Pool) Enqueue(owner pcb.Handle, h Handle) {
	m := p.Get(h)
	m.owner = owner
	m.prev, m.next = Nil, Nil
	tail := p.inboxTail[owner]
	if tail == Nil {
		p.inboxHead[owner] = h
		p.inboxTail[owner] = h
		return
	}
	tm := p.Get(tail)
	tm.next = h
	m.prev = tail
	p.inboxTail[owner] = h
}

// FindMatching scans owner's inbox for the first message whose Sender
// equals filter, or, if anyFilter is true, the first message regardless
// of sender (§4.4's ReceiveMessage semantics).
func (p *Pool) FindMatching(owner, filter pcb.Handle, anyFilter bool) Handle {
	cur := p.inboxHead[owner]
	for cur != Nil {
		m := p.Get(cur)
		if anyFilter || m.Sender == filter {
			return cur
		}
		cur = m.next
	}
	return Nil
}

// Remove splices h out of its current inbox (used once a matching
// message has been consumed by Receive).
func (p *Pool) Remove(h Handle) {
	m := p.Get(h)
	owner := m.owner
	if m.prev != Nil {
		p.Get(m.prev).next = m.next
	} else {
		p.inboxHead[owner] = m.next
	}
	if m.next != Nil {
		p.Get(m.next).prev = m.prev
	} else {
		p.inboxTail[owner] = m.prev
	}
	m.prev, m.next = Nil, Nil
	m.owner = pcb.Nil
}

// DrainInbox frees and discards every message still in owner's inbox —
// used by TerminateProcess, since a dead PCB's queued messages have
// nowhere left to be delivered.
func (p *Pool) DrainInbox(owner pcb.Handle) {
	cur := p.inboxHead[owner]
	for cur != Nil {
		next := p.Get(cur).next
		p.Get(cur).prev, p.Get(cur).next, p.Get(cur).owner = Nil, Nil, pcb.Nil
		p.Free(cur)
		cur = next
	}
	delete(p.inboxHead, owner)
	delete(p.inboxTail, owner)
}
