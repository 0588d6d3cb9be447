// Package sst implements the per-user support service server and its
// device-proxy PCBs (§4.8). Every user process's SST is its parent in
// the process tree, brokering GetTOD/Terminate/WritePrinter/WriteTerminal
// requests the way the nucleus's SSI brokers CreateProcess/DoIO/etc. one
// layer down.
package sst

import (
	"time"

	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/support/pager"
)

// ServiceCode identifies which SST service a request names (§4.8).
type ServiceCode int

const (
	SvcGetTOD ServiceCode = iota
	SvcTerminate
	SvcWritePrinter
	SvcWriteTerminal
)

// Request is the (service_code, arg) pair a U-proc sends its SST via the
// support-level SendMsg syscall.
type Request struct {
	Service ServiceCode
	Arg     any
}

// WriteArgs is Request.Arg for SvcWritePrinter/SvcWriteTerminal.
type WriteArgs struct {
	ASID uint32
	Text string
}

// SST is one per-user support service server.
type SST struct {
	Self  pcb.Handle
	UProc pcb.Handle
	ASID  uint32

	SSI           pcb.Handle
	PrinterProxy  pcb.Handle
	TerminalProxy pcb.Handle
	Master        pcb.Handle // test/master PCB notified on Terminate, pcb.Nil if none

	Pager *pager.Pager

	pendingProxy  pcb.Handle
	pendingClient pcb.Handle
}

// New allocates and registers the SST PCB. It neither creates nor links
// a U-proc and leaves UProc as pcb.Nil; a U-proc becomes the SST's child
// only when it is created with the SST as the CreateProcess requester.
func New(ctx *nucleus.Context, asid uint32, ssi, printerProxy, terminalProxy, master pcb.Handle, pg *pager.Pager) *SST {
	self := ctx.SpawnServer()
	return &SST{
		Self: self, ASID: asid,
		SSI: ssi, PrinterProxy: printerProxy, TerminalProxy: terminalProxy, Master: master,
		Pager: pg,
	}
}

// Step drains the SST's inbox one request at a time, the same
// resumable-loop shape as nucleus.Context.RunSSI and pager.Mediator.Step.
func (s *SST) Step(ctx *nucleus.Context) {
	for {
		if s.pendingProxy != pcb.Nil {
			res := ctx.TryReceive(s.Self, s.pendingProxy)
			if res.Blocked {
				ctx.Suspend(s.Self)
				return
			}
			ctx.SendMessage(s.Self, s.pendingClient, struct{}{})
			s.pendingProxy, s.pendingClient = pcb.Nil, pcb.Nil
			continue
		}

		res := ctx.TryReceive(s.Self, nucleus.Any)
		if res.Blocked {
			return
		}
		req, ok := res.Payload.(Request)
		if !ok {
			continue
		}

		switch req.Service {
		case SvcGetTOD:
			ctx.SendMessage(s.Self, res.Sender, time.Now().UnixNano())

		case SvcTerminate:
			s.terminate(ctx)
			return

		case SvcWritePrinter:
			args, _ := req.Arg.(WriteArgs)
			ctx.SendMessage(s.Self, s.PrinterProxy, args.Text)
			s.pendingProxy, s.pendingClient = s.PrinterProxy, res.Sender

		case SvcWriteTerminal:
			args, _ := req.Arg.(WriteArgs)
			ctx.SendMessage(s.Self, s.TerminalProxy, args.Text)
			s.pendingProxy, s.pendingClient = s.TerminalProxy, res.Sender
		}
	}
}

// terminate implements §4.8's Terminate service: release the ASID's
// swap-pool frames, notify the master test process, then ask the SSI to
// kill both device-proxy PCBs and finally the SST itself — which, being
// self-termination, recursively kills the U-proc child too.
func (s *SST) terminate(ctx *nucleus.Context) {
	s.Pager.ReleaseASID(s.ASID)
	if s.Master != pcb.Nil {
		ctx.SendMessage(s.Self, s.Master, s.ASID)
	}
	ctx.SendMessage(s.Self, s.SSI, nucleus.Request{Service: nucleus.SvcTerminateProcess, Arg: s.PrinterProxy})
	ctx.SendMessage(s.Self, s.SSI, nucleus.Request{Service: nucleus.SvcTerminateProcess, Arg: s.TerminalProxy})
	ctx.SendMessage(s.Self, s.SSI, nucleus.Request{Service: nucleus.SvcTerminateProcess, Arg: pcb.Handle(pcb.Nil)})
}
