package nucleus

import (
	"testing"

	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

func TestSSICreateProcessLinksChildAndEnqueuesReady(t *testing.T) {
	ctx := newTestContext(t)
	ssi := ctx.NewSSI()
	parent := ctx.SpawnServer()
	sup := &pcb.Support{ASID: 3}

	ctx.SendMessage(parent, ssi, Request{Service: SvcCreateProcess, Arg: CreateProcessArgs{
		State: mips.State{PC: 0x800000B0}, Support: sup,
	}})
	ctx.RunSSI()

	res := ctx.TryReceive(parent, ssi)
	if res.Blocked {
		t.Fatalf("parent never received the CreateProcess reply")
	}
	child, ok := res.Payload.(pcb.Handle)
	if !ok || child == pcb.Nil {
		t.Fatalf("CreateProcess reply = %v, want a live child handle", res.Payload)
	}
	if got := ctx.Pool.Get(child).Support; got != sup {
		t.Fatalf("child's Support = %p, want the one passed in (%p)", got, sup)
	}
	children := ctx.Pool.Children(parent)
	if len(children) != 1 || children[0] != child {
		t.Fatalf("Children(parent) = %v, want [%v]", children, child)
	}
}

func TestSSIWaitForClockWakesOnIntervalTick(t *testing.T) {
	ctx := newTestContext(t)
	ssi := ctx.NewSSI()
	waiter := ctx.SpawnServer()

	ctx.SendMessage(waiter, ssi, Request{Service: SvcWaitForClock})
	ctx.RunSSI()

	if ctx.SoftBlock != 1 {
		t.Fatalf("SoftBlock = %d, want 1 after WaitForClock", ctx.SoftBlock)
	}
	if res := ctx.TryReceive(waiter, ssi); !res.Blocked {
		t.Fatalf("waiter got a reply before the clock ticked")
	}

	if err := ctx.handleIntervalTimer(); err != nil {
		t.Fatalf("handleIntervalTimer: %v", err)
	}

	if ctx.SoftBlock != 0 {
		t.Fatalf("SoftBlock = %d, want 0 after the tick drained the pseudo-clock queue", ctx.SoftBlock)
	}
	if res := ctx.TryReceive(waiter, ssi); res.Blocked {
		t.Fatalf("waiter was never woken by the interval tick")
	}
}

func TestSSIGetCPUTimeReportsAccumulated(t *testing.T) {
	ctx := newTestContext(t)
	ssi := ctx.NewSSI()
	client := ctx.SpawnServer()
	ctx.Pool.Get(client).CPUTime = 4242

	ctx.SendMessage(client, ssi, Request{Service: SvcGetCPUTime})
	ctx.RunSSI()

	res := ctx.TryReceive(client, ssi)
	if res.Blocked || res.Payload.(uint64) != 4242 {
		t.Fatalf("GetCPUTime reply = %+v, want 4242", res)
	}
}

func TestSSIGetProcessIDSelfAndParent(t *testing.T) {
	ctx := newTestContext(t)
	ssi := ctx.NewSSI()
	parent := ctx.SpawnServer()
	child := ctx.SpawnServer()
	ctx.Pool.InsertChild(parent, child)

	ctx.SendMessage(child, ssi, Request{Service: SvcGetProcessID, Arg: GetProcessIDArg{Target: pcb.Nil}})
	ctx.RunSSI()
	res := ctx.TryReceive(child, ssi)
	if res.Blocked || res.Payload.(uint64) != ctx.Pool.Get(child).PID {
		t.Fatalf("self PID reply = %+v, want %d", res, ctx.Pool.Get(child).PID)
	}

	ctx.SendMessage(child, ssi, Request{Service: SvcGetProcessID, Arg: GetProcessIDArg{Target: child}})
	ctx.RunSSI()
	res = ctx.TryReceive(child, ssi)
	if res.Blocked || res.Payload.(uint64) != ctx.Pool.Get(parent).PID {
		t.Fatalf("parent PID reply = %+v, want %d", res, ctx.Pool.Get(parent).PID)
	}
}

func TestSSIGetSupportPtrReturnsOwnSupport(t *testing.T) {
	ctx := newTestContext(t)
	ssi := ctx.NewSSI()
	client := ctx.SpawnServer()
	sup := &pcb.Support{ASID: 9}
	ctx.Pool.Get(client).Support = sup

	ctx.SendMessage(client, ssi, Request{Service: SvcGetSupportPtr})
	ctx.RunSSI()

	res := ctx.TryReceive(client, ssi)
	if res.Blocked || res.Payload.(*pcb.Support) != sup {
		t.Fatalf("GetSupportPtr reply = %+v, want %p", res, sup)
	}
}

// TestSSISelfTerminationPanics confirms the SSI asking to terminate
// itself is flagged as a fatal machine condition (§4.5) rather than
// being serviced like any other TerminateProcess request.
func TestSSISelfTerminationPanics(t *testing.T) {
	ctx := newTestContext(t)
	ssi := ctx.NewSSI()

	ctx.SendMessage(ssi, ssi, Request{Service: SvcTerminateProcess, Arg: ssi})
	ctx.RunSSI()

	if !ctx.BIOS.Panicked() {
		t.Fatalf("the SSI terminating itself should flag the machine as panicked")
	}
	if !ctx.Pool.IsLive(ssi) {
		t.Fatalf("the SSI itself should not have been freed by a self-terminate attempt")
	}
}
