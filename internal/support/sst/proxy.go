package sst

import (
	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
)

// Proxy is one device-proxy PCB: it has no independent algorithmic
// content beyond serializing character emission for one (ASID, device
// class) pair (§4.8's design note). Its loop: receive a string -> for
// each character issue a DoIO and await the completion -> on EOS,
// acknowledge the requesting SST with an empty message.
type Proxy struct {
	Self pcb.Handle
	SSI  pcb.Handle
	Line int // devices.LinePrinter or devices.LineTerminal
	Dev  int // sub-device index, conventionally ASID-1

	client pcb.Handle
	text   []byte
	pos    int
	io     bool // awaiting a DoIO completion for the character at pos
}

// NewProxy allocates and registers one device-proxy PCB for (line, dev).
func NewProxy(ctx *nucleus.Context, ssi pcb.Handle, line, dev int) *Proxy {
	return &Proxy{Self: ctx.SpawnServer(), SSI: ssi, Line: line, Dev: dev}
}

// Step drains one full string transmission at a time.
func (p *Proxy) Step(ctx *nucleus.Context) {
	for {
		if p.io {
			res := ctx.TryReceive(p.Self, p.SSI)
			if res.Blocked {
				ctx.Suspend(p.Self)
				return
			}
			status, _ := res.Payload.(uint32)
			want := devices.StatusReady
			if p.Line == devices.LineTerminal {
				want = devices.StatusTransmitted
			}
			if status != want {
				ctx.BIOS.PANIC()
				return
			}
			p.io = false
			p.pos++
			continue
		}

		if p.text != nil {
			if p.pos < len(p.text) {
				p.issueChar(ctx, p.text[p.pos])
				continue
			}
			ctx.SendMessage(p.Self, p.client, struct{}{})
			p.text, p.client = nil, pcb.Nil
			continue
		}

		res := ctx.TryReceive(p.Self, nucleus.Any)
		if res.Blocked {
			return
		}
		text, _ := res.Payload.(string)
		p.client = res.Sender
		p.text = []byte(text)
		p.pos = 0
	}
}

// issueChar implements §4.8's device-specific command encoding: the
// printer carries its character in data0 plus a generic print command,
// the terminal encodes it directly into the high byte of the command
// word (§6).
func (p *Proxy) issueChar(ctx *nucleus.Context, ch byte) {
	var cmd uint32
	transmit := false
	if p.Line == devices.LineTerminal {
		cmd = devices.TransmitCommand(ch)
		transmit = true
	} else {
		ctx.Bus.Register(p.Line, p.Dev).SetData0(uint32(ch))
		cmd = devices.CmdPrintChar
	}
	ctx.SendMessage(p.Self, p.SSI, nucleus.Request{
		Service: nucleus.SvcDoIO,
		Arg:     nucleus.DoIOArgs{Line: p.Line, Dev: p.Dev, Transmit: transmit, Command: cmd},
	})
	p.io = true
}
