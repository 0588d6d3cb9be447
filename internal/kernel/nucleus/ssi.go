// SSI — the privileged request broker of §4.5. The SSI is an ordinary
// kernel-mode PCB; RunSSI is invoked by the run loop every time the SSI
// is dispatched and performs one receive→decode→execute→reply cycle,
// repeating until its inbox is drained (at which point the next
// ReceiveMessage blocks and control returns to the scheduler).
package nucleus

import (
	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// ServiceCode identifies which SSI service a request names (§4.5's table).
type ServiceCode int

const (
	SvcCreateProcess ServiceCode = iota
	SvcTerminateProcess
	SvcDoIO
	SvcWaitForClock
	SvcGetCPUTime
	SvcGetProcessID
	SvcGetSupportPtr
)

// Request is the (service_code, arg) pair the spec describes as a
// pointer-to-struct payload; arg's concrete type depends on Service.
type Request struct {
	Service ServiceCode
	Arg     any
}

// CreateProcessArgs is Request.Arg for SvcCreateProcess.
type CreateProcessArgs struct {
	State   mips.State
	Support *pcb.Support
}

// DoIOArgs is Request.Arg for SvcDoIO: a resolved device coordinate and
// the command word to write.
type DoIOArgs struct {
	Line, Dev int
	Transmit  bool // terminal line only
	Command   uint32
}

// GetProcessIDArg is Request.Arg for SvcGetProcessID: NULL (zero Handle)
// means "my own PID"; any non-nil value means "my parent's PID" (§4.5's
// table: "sender's PID, or sender.parent.PID"). Target itself isn't
// resolved to a process — it's only ever the caller's own request, never
// a handle naming someone else.
type GetProcessIDArg struct {
	Target pcb.Handle
}

const NoProc pcb.Handle = pcb.Nil

// SpawnServer allocates a privileged, kernel-mode, interrupts-enabled PCB
// and enqueues it ready — the common shape every long-running server
// process (SSI, mutex mediator, SST, device proxy) starts from.
func (c *Context) SpawnServer() pcb.Handle {
	p, err := c.Pool.Alloc()
	if err != nil {
		panic("nucleus: cannot allocate server PCB")
	}
	p.State.Status = mips.StatusIEc | mips.StatusIEp // kernel mode, interrupts enabled
	c.Ready.InsertTail(p.Handle())
	return p.Handle()
}

// NewSSI allocates and registers the privileged SSI PCB. Schedule reports
// HALT once the live-process count drops to one, which in a normal run is
// the SSI itself.
func (c *Context) NewSSI() pcb.Handle {
	c.SSI = c.SpawnServer()
	c.Running = pcb.Nil
	return c.SSI
}

// RunSSI drains every request currently queued in the SSI's inbox. Each
// request/reply pair is a single message exchange, so nothing here
// blocks except the final ReceiveMessage that finds the inbox empty.
func (c *Context) RunSSI() {
	for {
		res := c.TryReceive(c.SSI, Any)
		if res.Blocked {
			return
		}
		c.handleRequest(res.Sender, res.Payload)
	}
}

func (c *Context) handleRequest(sender pcb.Handle, payload any) {
	req, ok := payload.(Request)
	if !ok {
		return
	}
	switch req.Service {
	case SvcCreateProcess:
		args, _ := req.Arg.(CreateProcessArgs)
		reply := c.createProcess(sender, args)
		c.SendMessage(c.SSI, sender, reply)

	case SvcTerminateProcess:
		target, _ := req.Arg.(pcb.Handle)
		if target == pcb.Nil {
			target = sender
		}
		if target == c.SSI {
			c.BIOS.PANIC() // §4.5: self-termination of the SSI is fatal
			return
		}
		selfKill := target == sender
		c.TerminateProcess(sender, target)
		if !selfKill {
			c.SendMessage(c.SSI, sender, RCOk)
		}

	case SvcDoIO:
		args, _ := req.Arg.(DoIOArgs)
		c.doIO(sender, args)
		// reply deferred to the device interrupt handler

	case SvcWaitForClock:
		c.PseudoClock.InsertTail(sender)
		c.SoftBlock++
		// reply deferred to the interval-timer interrupt

	case SvcGetCPUTime:
		c.SendMessage(c.SSI, sender, c.Pool.Get(sender).CPUTime)

	case SvcGetProcessID:
		arg, _ := req.Arg.(GetProcessIDArg)
		var pid uint64
		if arg.Target == pcb.Nil {
			pid = c.Pool.Get(sender).PID
		} else {
			parent := c.Pool.Get(sender).Parent
			if parent != pcb.Nil {
				pid = c.Pool.Get(parent).PID
			}
		}
		c.SendMessage(c.SSI, sender, pid)

	case SvcGetSupportPtr:
		c.SendMessage(c.SSI, sender, c.Pool.Get(sender).Support)
	}
}

// createProcess implements CreateProcess (§4.5): allocate a PCB, copy
// state, set support, link as a child of sender, enqueue ready.
func (c *Context) createProcess(sender pcb.Handle, args CreateProcessArgs) pcb.Handle {
	child, err := c.Pool.Alloc()
	if err != nil {
		return NoProc
	}
	child.State = args.State
	child.Support = args.Support
	c.Pool.InsertChild(sender, child.Handle())
	c.Ready.InsertTail(child.Handle())
	return child.Handle()
}

// TerminateProcess recursively terminates target's whole subtree
// (depth-first), then removes target from any queue it inhabits,
// detaches it from its parent, and frees it (§4.5).
func (c *Context) TerminateProcess(requester, target pcb.Handle) {
	for _, child := range c.Pool.Children(target) {
		c.TerminateProcess(requester, child)
	}

	entry := c.Pool.Get(target)
	switch entry.Kind() {
	case pcb.KindReady:
		c.Ready.RemoveAnywhere(target)
	case pcb.KindBlocked:
		if c.PseudoClock.Contains(target) {
			c.PseudoClock.RemoveAnywhere(target)
			c.SoftBlock--
		} else if entry.HasBlockedOnDevice() {
			if q := c.deviceQueueFor(target); q != nil {
				q.RemoveAnywhere(target)
				c.SoftBlock--
			}
		}
	}
	if c.Running == target {
		c.Running = pcb.Nil
	}

	c.Msgs.DrainInbox(target)
	c.Pool.DetachFromParent(target)
	c.Pool.Free(target)
}

// doIO implements DoIO (§4.5): enqueue the requester on the resolved
// device's blocked queue, record which sub-device it's waiting on, then
// write the command word to hardware. The reply is delivered later by
// the interrupt handler.
func (c *Context) doIO(sender pcb.Handle, args DoIOArgs) {
	q := c.DeviceQueue(args.Line, args.Transmit)
	if q == nil {
		return
	}
	entry := c.Pool.Get(sender)
	entry.SetBlockedOnDevice(args.Dev)
	q.InsertTail(sender)
	c.SoftBlock++

	reg := c.Bus.Register(args.Line, args.Dev)
	if args.Line == devices.LineTerminal && args.Transmit {
		reg.(*devices.TerminalRegister).SetTransmitCommand(args.Command)
	} else {
		reg.SetCommand(args.Command)
	}

	if c.OnDoIO != nil {
		c.OnDoIO(args.Line, args.Dev, args.Command)
	}
}

// deviceQueueFor resolves the device (and sub-queue: recv vs. transmit) a
// PCB is currently blocked on, from its recorded device index. The index
// alone does not carry the line, so device-queue membership is looked up
// against every external-line queue; this is O(lines) and only runs on
// the (rare) termination-of-a-blocked-process path.
func (c *Context) deviceQueueFor(h pcb.Handle) *pcb.Queue {
	for _, q := range []*pcb.Queue{c.diskQ, c.flashQ, c.networkQ, c.printerQ, c.termRecvQ, c.termXmitQ} {
		if q.Contains(h) {
			return q
		}
	}
	return nil
}
