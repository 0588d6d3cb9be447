package pcb

// Queue is a doubly-linked, head-sentinel FIFO of PCBs (§4.1). It holds no
// PCB storage itself — membership links live inline on each PCB (prev/
// next), which is what keeps every queue op but remove_anywhere O(1) and
// is also what enforces "a PCB is on at most one queue": splicing a PCB
// into a second queue without removing it from the first silently
// corrupts the first queue's links, exactly as the spec warns.
type Queue struct {
	pool       *Pool
	head, tail Handle
	kindTag    Kind
	len        int
}

// NewQueue creates an empty queue backed by pool. kindTag marks every
// member PCB with KindReady or KindBlocked so OnQueue/free_pcb's
// precondition can be checked cheaply; pass KindBlocked for device and
// pseudo-clock queues, KindReady for the ready queue.
func NewQueue(pool *Pool, kindTag Kind) *Queue {
	return &Queue{pool: pool, kindTag: kindTag}
}

func (q *Queue) Empty() bool { return q.head == Nil }

func (q *Queue) Len() int { return q.len }

// Head returns the front of the queue without removing it, or Nil.
func (q *Queue) Head() Handle { return q.head }

// InsertTail appends h to the queue. Inserting an already-linked PCB is
// undefined per spec; callers must RemoveAnywhere first.
func (q *Queue) InsertTail(h Handle) {
	e := q.pool.Get(h)
	e.prev, e.next = Nil, Nil
	e.kind = q.kindTag
	if q.tail == Nil {
		q.head, q.tail = h, h
		q.len = 1
		return
	}
	tail := q.pool.Get(q.tail)
	tail.next = h
	e.prev = q.tail
	q.tail = h
	q.len++
}

// RemoveHead pops and returns the front of the queue, or Nil if empty.
func (q *Queue) RemoveHead() Handle {
	if q.head == Nil {
		return Nil
	}
	h := q.head
	q.removeLinked(h)
	return h
}

// RemoveAnywhere splices h out of the queue from any position; O(n) to
// locate, O(1) to splice. No-op if h is not a member of this queue.
func (q *Queue) RemoveAnywhere(h Handle) {
	cur := q.head
	for cur != Nil {
		if cur == h {
			q.removeLinked(h)
			return
		}
		cur = q.pool.Get(cur).next
	}
}

// Contains reports whether h is currently a member, O(n).
func (q *Queue) Contains(h Handle) bool {
	cur := q.head
	for cur != Nil {
		if cur == h {
			return true
		}
		cur = q.pool.Get(cur).next
	}
	return false
}

func (q *Queue) removeLinked(h Handle) {
	e := q.pool.Get(h)
	if e.prev != Nil {
		q.pool.Get(e.prev).next = e.next
	} else {
		q.head = e.next
	}
	if e.next != Nil {
		q.pool.Get(e.next).prev = e.prev
	} else {
		q.tail = e.prev
	}
	e.prev, e.next = Nil, Nil
	e.kind = KindNone
	q.len--
}
