// Command pandos boots the PandOS kernel core: it builds the nucleus
// Context, spawns the SSI, and runs a short self-test exercising message
// passing between two server PCBs, their self-termination through the
// SSI, and the network device's frame-validation path; CreateProcess and
// WaitForClock are not exercised. It reports boot progress the way the teacher's
// internal/linux/kernel/alpine.go and internal/oci/client.go report
// multi-stage downloads. Per §6, there is no startup command: no argv,
// no env, nothing to parse.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/miekg/dns"
	"github.com/schollz/progressbar/v3"
	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/pandos-kernel/pandos/internal/config"
	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/nucleus"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load("pandos.yaml")
	if err != nil {
		log.Error("config: load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("config: invalid", "err", err)
		os.Exit(1)
	}

	bar := progressbar.Default(4, "booting pandos")

	ctx := nucleus.NewContext(nucleus.Config{MaxProc: cfg.MaxProc, MaxMessages: cfg.MaxMessages}, log)
	bar.Describe("pools + devices ready")
	bar.Add(1)

	ssi := ctx.NewSSI()
	bar.Describe("SSI online")
	bar.Add(1)

	a := spawnPing(ctx, ssi, "A")
	b := spawnPing(ctx, ssi, "B")
	a.peer, b.peer = b.self, a.self
	drivers := map[pcb.Handle]func(*nucleus.Context){
		ssi:    (*nucleus.Context).RunSSI,
		a.self: a.step,
		b.self: b.step,
	}
	bar.Describe("process tree built")
	bar.Add(1)

	if err := networkSelfTest(); err != nil {
		log.Error("network self-test failed", "err", err)
	} else {
		log.Info("network self-test ok")
	}

	runLoop(ctx, drivers, log)
	bar.Describe("halted")
	bar.Add(1)
}

// runLoop repeatedly dispatches the ready queue and hands control to the
// dispatched PCB's registered driver, mirroring the firmware's
// dispatch-then-trap loop now that the hardware itself isn't real. A
// driver that blocks calls ctx.Suspend internally (exactly like
// Mediator.Step/SST.Step do), which re-enters Schedule on its own; a
// driver that merely drains its inbox and returns (RunSSI's documented
// contract) is suspended by the loop itself. Either way the loop reads
// ctx.LastOutcome afterward rather than calling Schedule a second time,
// since Schedule was already invoked — directly or via Suspend — before
// this point.
func runLoop(ctx *nucleus.Context, drivers map[pcb.Handle]func(*nucleus.Context), log *slog.Logger) {
	ctx.Schedule()
	for {
		switch ctx.LastOutcome {
		case nucleus.OutcomeHalt:
			log.Info("HALT: only the SSI remains live")
			return
		case nucleus.OutcomePanic:
			log.Error("PANIC: scheduler deadlock")
			return
		case nucleus.OutcomeWait:
			log.Info("WAIT: all live processes are soft-blocked")
			time.Sleep(devices.PSECOND)
			tickInterval(ctx)
			ctx.Schedule()
		case nucleus.OutcomeDispatched:
			running := ctx.Running
			if d, ok := drivers[running]; ok {
				d(ctx)
			}
			if ctx.Running == running {
				ctx.Suspend(running)
			}
		}
	}
}

// tickInterval fires the interval-timer interrupt path directly, the
// demo's stand-in for the hardware actually raising exception code 0 on
// the 100ms boundary (§4.6).
func tickInterval(ctx *nucleus.Context) {
	_ = ctx.HandleInterrupt()
}

// pingTask is the self-test's pair of kernel-mode demo PCBs implementing
// spec.md §8 seed case 1 ("ping-pong"): A sends 7 to B and receives; B
// replies 8 to A's payload, then both ask the SSI to terminate
// themselves, leaving only the SSI live so the run loop HALTs cleanly.
type pingTask struct {
	self  pcb.Handle
	peer  pcb.Handle
	ssi   pcb.Handle
	name  string
	log   *slog.Logger
	state int
}

func spawnPing(ctx *nucleus.Context, ssi pcb.Handle, name string) *pingTask {
	return &pingTask{self: ctx.SpawnServer(), ssi: ssi, name: name, log: ctx.Log}
}

func (p *pingTask) step(ctx *nucleus.Context) {
	for {
		switch p.state {
		case 0:
			if p.name == "A" {
				ctx.SendMessage(p.self, p.peer, uint32(7))
			}
			p.state = 1
		case 1:
			res := ctx.TryReceive(p.self, nucleus.Any)
			if res.Blocked {
				ctx.Suspend(p.self)
				return
			}
			payload, _ := res.Payload.(uint32)
			p.log.Info("ping-pong", "proc", p.name, "from", res.Sender, "payload", payload)
			if p.name == "B" {
				ctx.SendMessage(p.self, res.Sender, uint32(8))
			}
			p.state = 2
		case 2:
			ctx.SendMessage(p.self, p.ssi, nucleus.Request{Service: nucleus.SvcTerminateProcess, Arg: pcb.Handle(pcb.Nil)})
			p.state = 3
			return
		default:
			return
		}
	}
}

// networkSelfTest builds one synthetic DNS query with miekg/dns, wraps it
// in a minimal IPv4 header, and checks the header checksum the way the
// network device's completion handler would before delivering a DoIO
// status (§4.6, §6) — grounded on the teacher's gVisor-backed netstack
// test harness (internal/netstack/test/gvisor.go) and its DNS server
// (internal/netstack/dns.go).
func networkSelfTest() error {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn("pandos.local"), dns.TypeA)
	payload, err := q.Pack()
	if err != nil {
		return fmt.Errorf("pandos: pack dns query: %w", err)
	}

	frame := make([]byte, header.IPv4MinimumSize+len(payload))
	frame[0] = 0x45 // version 4, 20-byte header
	frame[8] = 64   // TTL
	frame[9] = 17   // UDP
	frame[12], frame[13], frame[14], frame[15] = 10, 0, 0, 1
	frame[16], frame[17], frame[18], frame[19] = 10, 0, 0, 2
	copy(frame[header.IPv4MinimumSize:], payload)

	ip := header.IPv4(frame)
	ip.SetTotalLength(uint16(len(frame)))
	ip.SetChecksum(0)
	ip.SetChecksum(^ip.CalculateChecksum())

	ok, err := devices.ValidateFrame(frame)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pandos: synthetic frame failed checksum validation")
	}
	return nil
}
