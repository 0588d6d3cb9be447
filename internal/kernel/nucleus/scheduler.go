package nucleus

import (
	"time"

	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
	"github.com/pandos-kernel/pandos/internal/mips"
)

// Outcome distinguishes what the scheduler decided to do when the ready
// queue was empty at dispatch time (§4.2's table).
type Outcome int

const (
	OutcomeDispatched Outcome = iota
	OutcomeHalt
	OutcomePanic
	OutcomeWait
)

// chargeElapsed adds the wall time since the last dispatch to the
// outgoing PCB's accumulated CPU time, the "end-of-day minus
// dispatch-time" step of §4.2.
func (c *Context) chargeElapsed(h pcb.Handle) {
	if h == pcb.Nil || c.dispatchTime.IsZero() {
		return
	}
	elapsed := time.Since(c.dispatchTime)
	if elapsed < 0 {
		elapsed = 0
	}
	c.Pool.Get(h).CPUTime += uint64(elapsed)
}

// Schedule implements the round-robin dispatch loop of §4.2. On success it
// reloads the chosen PCB's processor state into the BIOS data page and
// returns OutcomeDispatched; otherwise it returns the HALT/PANIC/WAIT
// decision from the table, which the caller (the top-level run loop) must
// act on.
func (c *Context) Schedule() Outcome {
	c.chargeElapsed(c.Running)
	c.Running = pcb.Nil

	next := c.Ready.RemoveHead()
	if next == pcb.Nil {
		live := c.Pool.LiveCount()
		switch {
		case live <= 1:
			c.LastOutcome = OutcomeHalt
		case c.SoftBlock == 0:
			c.LastOutcome = OutcomePanic
		default:
			c.LastOutcome = OutcomeWait
		}
		return c.LastOutcome
	}

	c.Local.Off()
	c.Local.Set(devices.TIMESLICE)
	c.dispatchTime = time.Now()

	entry := c.Pool.Get(next)
	c.Running = next
	c.BIOS.LDST(&entry.State)
	c.LastOutcome = OutcomeDispatched
	return OutcomeDispatched
}

// Preempt is invoked by the local-timer interrupt (§4.6): charge the
// running PCB, save its state, re-enqueue it ready, then reschedule.
func (c *Context) Preempt(saved mips.State) {
	if c.Running == pcb.Nil {
		c.Schedule()
		return
	}
	c.chargeElapsed(c.Running)
	entry := c.Pool.Get(c.Running)
	entry.State = saved
	c.Ready.InsertTail(c.Running)
	c.Running = pcb.Nil
	c.Schedule()
}
