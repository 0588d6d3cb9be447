package nucleus

import (
	"github.com/pandos-kernel/pandos/internal/kernel/msg"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
)

// Kernel syscall return codes (§4.4, §7). Exactly two kernel-mode syscalls
// exist, chosen by a0: SendMessage (-1) and ReceiveMessage (-2).
const (
	SyscallSend    int32 = -1
	SyscallReceive int32 = -2
)

const (
	RCOk           int32 = 0
	RCMsgNoGood    int32 = -1
	RCDestNotExist int32 = -2
)

// Any is the wildcard sender filter for ReceiveMessage.
const Any = pcb.Nil

// SendMessage implements the SendMessage(-1) kernel syscall (§4.4): the
// stricter of the two variants the spec's Open Questions flag — a PCB is
// woken only if it is neither running, nor on the ready queue, nor on a
// device/pseudo-clock queue (i.e. parked mid-ReceiveMessage).
func (c *Context) SendMessage(sender, dest pcb.Handle, payload any) int32 {
	if !c.Pool.IsLive(dest) {
		return RCDestNotExist
	}
	m, err := c.Msgs.Alloc()
	if err != nil {
		return RCMsgNoGood
	}
	m.Sender = sender
	m.Payload = payload

	destEntry := c.Pool.Get(dest)
	if dest != c.Running && destEntry.Kind() == pcb.KindNone {
		c.Ready.InsertTail(dest)
	}
	c.Msgs.Enqueue(dest, m.Handle())
	return RCOk
}

// ReceiveResult is the outcome of a ReceiveMessage attempt.
type ReceiveResult struct {
	Sender  pcb.Handle
	Payload any
	Blocked bool
}

// TryReceive implements the non-blocking half of ReceiveMessage(-2):
// scan owner's inbox for a message matching filter (or any, if
// filter==Any), consume it if present. If nothing matches, the caller is
// responsible for the blocking half (save state, charge CPU time, call
// Schedule) exactly as §4.4 describes, since whether that's warranted
// depends on context the syscall dispatcher already has.
func (c *Context) TryReceive(owner, filter pcb.Handle) ReceiveResult {
	h := c.Msgs.FindMatching(owner, filter, filter == Any)
	if h == msg.Nil {
		return ReceiveResult{Blocked: true}
	}
	m := c.Msgs.Get(h)
	res := ReceiveResult{Sender: m.Sender, Payload: m.Payload}
	c.Msgs.Remove(h)
	c.Msgs.Free(h)
	return res
}

// Suspend parks h (which must be c.Running) pending a message it will
// receive on some later dispatch: charge its elapsed CPU time and invoke
// the scheduler, exactly as ReceiveMessage's blocking half does inside
// handleSyscall. It lets server roles outside the syscall dispatcher —
// the mutex mediator, the pager, the SST, device proxies — block on a
// TryReceive the same way a user process blocks on ReceiveMessage,
// without duplicating the save/charge/reschedule sequence at each call
// site.
func (c *Context) Suspend(h pcb.Handle) {
	if h != c.Running {
		return
	}
	c.chargeElapsed(h)
	c.Running = pcb.Nil
	c.Schedule()
}
