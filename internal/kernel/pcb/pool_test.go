package pcb

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	p := NewPool(2)

	a, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a.Handle() == b.Handle() {
		t.Fatalf("two live PCBs share a handle: %d", a.Handle())
	}
	if !p.IsLive(a.Handle()) || !p.IsLive(b.Handle()) {
		t.Fatalf("freshly allocated PCBs should be live")
	}
	if got := p.LiveCount(); got != 2 {
		t.Fatalf("LiveCount() = %d, want 2", got)
	}

	if _, err := p.Alloc(); err == nil {
		t.Fatalf("Alloc on a full pool should fail")
	}

	p.Free(a.Handle())
	if p.IsLive(a.Handle()) {
		t.Fatalf("freed PCB should not be live")
	}
	if got := p.LiveCount(); got != 1 {
		t.Fatalf("LiveCount() after Free = %d, want 1", got)
	}

	c, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc after Free: %v", err)
	}
	if c.Handle() != a.Handle() {
		t.Fatalf("Alloc after Free reused handle %d, want the freed handle %d", c.Handle(), a.Handle())
	}
}

func TestAllocZeroesState(t *testing.T) {
	p := NewPool(1)
	a, _ := p.Alloc()
	a.CPUTime = 42
	a.Local = "scratch"
	stalePID := a.PID
	p.Free(a.Handle())

	b, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if b.CPUTime != 0 || b.Local != nil {
		t.Fatalf("reused PCB carried over stale state: %+v", b)
	}
	if b.PID == stalePID {
		t.Fatalf("reused PCB kept the prior occupant's PID %d; PIDs must stay monotonic", b.PID)
	}
}

func TestQueueFIFO(t *testing.T) {
	p := NewPool(3)
	q := NewQueue(p, KindReady)

	a, _ := p.Alloc()
	b, _ := p.Alloc()
	c, _ := p.Alloc()

	q.InsertTail(a.Handle())
	q.InsertTail(b.Handle())
	q.InsertTail(c.Handle())

	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	for _, want := range []Handle{a.Handle(), b.Handle(), c.Handle()} {
		if got := q.RemoveHead(); got != want {
			t.Fatalf("RemoveHead() = %d, want %d", got, want)
		}
	}
	if q.RemoveHead() != Nil {
		t.Fatalf("RemoveHead() on an empty queue should return Nil")
	}
}

func TestQueueRemoveAnywhere(t *testing.T) {
	p := NewPool(3)
	q := NewQueue(p, KindBlocked)

	a, _ := p.Alloc()
	b, _ := p.Alloc()
	c, _ := p.Alloc()
	q.InsertTail(a.Handle())
	q.InsertTail(b.Handle())
	q.InsertTail(c.Handle())

	q.RemoveAnywhere(b.Handle())
	if q.Contains(b.Handle()) {
		t.Fatalf("RemoveAnywhere did not remove the middle element")
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("Len() after RemoveAnywhere = %d, want 2", got)
	}
	if got := q.RemoveHead(); got != a.Handle() {
		t.Fatalf("RemoveHead() = %d, want %d (FIFO order preserved)", got, a.Handle())
	}
	if got := q.RemoveHead(); got != c.Handle() {
		t.Fatalf("RemoveHead() = %d, want %d", got, c.Handle())
	}
}

func TestTreeParentChildSibling(t *testing.T) {
	p := NewPool(4)
	parent, _ := p.Alloc()
	c1, _ := p.Alloc()
	c2, _ := p.Alloc()

	p.InsertChild(parent.Handle(), c1.Handle())
	p.InsertChild(parent.Handle(), c2.Handle())

	children := p.Children(parent.Handle())
	if len(children) != 2 {
		t.Fatalf("Children() = %v, want 2 entries", children)
	}

	p.DetachFromParent(c1.Handle())
	if got := p.Children(parent.Handle()); len(got) != 1 || got[0] != c2.Handle() {
		t.Fatalf("Children() after detach = %v, want [%d]", got, c2.Handle())
	}
	if got := p.Get(c1.Handle()).Parent; got != Nil {
		t.Fatalf("detached child still has Parent = %d, want Nil", got)
	}
}
