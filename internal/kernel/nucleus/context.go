// Package nucleus implements Phase 2 of the spec: the scheduler, the
// exception/interrupt dispatcher, kernel-mode Send/Receive, and the SSI
// request broker — all as methods on a single owned Context, the way the
// design notes prescribe ("treat as a single owned context passed to
// every kernel routine").
package nucleus

import (
	"log/slog"
	"time"

	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/msg"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// Context owns every piece of global kernel state: the PCB and message
// pools, every process queue, the device bus and clocks, and the
// currently-running PCB. Interrupt-time entry points are top-level
// functions/methods that take a *Context, safe without locking because
// the hardware guarantees no reentrancy during kernel execution.
type Context struct {
	Pool *pcb.Pool
	Msgs *msg.Pool
	Bus  *devices.Bus
	BIOS *mips.BIOSDataPage
	MMU  *mips.MMU

	Local    devices.LocalTimer
	Interval devices.IntervalTimer

	Ready       *pcb.Queue
	PseudoClock *pcb.Queue

	// One queue per external line; the terminal line is split into
	// transmit/receive per §3 "Process queues".
	diskQ, flashQ, networkQ, printerQ *pcb.Queue
	termRecvQ, termXmitQ              *pcb.Queue

	SoftBlock int // count of PCBs waiting on I/O or the pseudo-clock

	Running      pcb.Handle
	SSI          pcb.Handle
	dispatchTime time.Time

	// LastOutcome is the decision Schedule most recently made. Schedule is
	// often invoked deep inside a driver's own call to Suspend rather than
	// directly by the top-level run loop, so the run loop reads this field
	// afterward instead of relying on a return value it never received.
	LastOutcome Outcome

	Log *slog.Logger

	// OnDoIO, if set, is called after every DoIO writes its command word
	// to hardware — the hook the interrupt-simulating test harness uses to
	// schedule the matching completion instead of wiring a second copy of
	// the bus into Context.
	OnDoIO func(line, dev int, command uint32)
}

// Config carries the fixed system-wide capacities (§6) a Context is built
// from.
type Config struct {
	MaxProc     int
	MaxMessages int
}

// NewContext allocates the pools, queues, and device bus for a fresh
// kernel instance.
func NewContext(cfg Config, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	pool := pcb.NewPool(cfg.MaxProc)
	c := &Context{
		Pool: pool,
		Msgs: msg.NewPool(cfg.MaxMessages),
		Bus:  devices.NewBus(),
		BIOS: mips.NewBIOSDataPage(),
		MMU:  mips.NewMMU(),
		Log:  log,
	}
	c.Ready = pcb.NewQueue(pool, pcb.KindReady)
	c.PseudoClock = pcb.NewQueue(pool, pcb.KindBlocked)
	c.diskQ = pcb.NewQueue(pool, pcb.KindBlocked)
	c.flashQ = pcb.NewQueue(pool, pcb.KindBlocked)
	c.networkQ = pcb.NewQueue(pool, pcb.KindBlocked)
	c.printerQ = pcb.NewQueue(pool, pcb.KindBlocked)
	c.termRecvQ = pcb.NewQueue(pool, pcb.KindBlocked)
	c.termXmitQ = pcb.NewQueue(pool, pcb.KindBlocked)
	c.Interval.Start()
	return c
}

// DeviceQueue returns the blocked-queue for (line, isTransmit); isTransmit
// is only consulted for the terminal line.
func (c *Context) DeviceQueue(line int, transmit bool) *pcb.Queue {
	switch line {
	case devices.LineDisk:
		return c.diskQ
	case devices.LineFlash:
		return c.flashQ
	case devices.LineNetwork:
		return c.networkQ
	case devices.LinePrinter:
		return c.printerQ
	case devices.LineTerminal:
		if transmit {
			return c.termXmitQ
		}
		return c.termRecvQ
	default:
		return nil
	}
}
