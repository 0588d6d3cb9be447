package nucleus

import (
	"github.com/pandos-kernel/pandos/internal/devices"
	"github.com/pandos-kernel/pandos/internal/kernel/pcb"
)

// HandleInterrupt implements §4.6: inspect pending lines in priority
// order (local timer, interval timer, then disk..terminal lowest-first)
// and route to the matching handler.
func (c *Context) HandleInterrupt() error {
	switch {
	case c.Local.Expired():
		return c.handleLocalTimer()
	case c.Interval.Fired():
		return c.handleIntervalTimer()
	}
	for line := devices.LineDisk; line <= devices.LineTerminal; line++ {
		if dev, ok := devices.LowestSet(c.Bus.PendingMask(line)); ok {
			return c.handleDeviceLine(line, dev)
		}
	}
	return nil
}

// handleLocalTimer hands off to Preempt, which charges the running PCB,
// saves its state, re-enqueues it ready, and reschedules.
func (c *Context) handleLocalTimer() error {
	c.Local.Off()
	c.Preempt(c.BIOS.Saved)
	return nil
}

// handleIntervalTimer drains the pseudo-clock queue, delivering a
// zero-payload wakeup message from the SSI to every waiter in arrival
// order, then resumes the running PCB (if any) or reschedules.
func (c *Context) handleIntervalTimer() error {
	for !c.PseudoClock.Empty() {
		waiter := c.PseudoClock.RemoveHead()
		c.SoftBlock--
		c.SendMessage(c.SSI, waiter, uint32(0))
	}
	if c.Running != pcb.Nil {
		return nil
	}
	c.Schedule()
	return nil
}

// handleDeviceLine acknowledges the interrupting sub-device, removes the
// head of its blocked queue (FIFO), and delivers the completion status
// as a message from the SSI.
func (c *Context) handleDeviceLine(line, dev int) error {
	reg := c.Bus.Register(line, dev)

	transmit := false
	status := reg.Status()
	if line == devices.LineTerminal {
		term := reg.(*devices.TerminalRegister)
		if devices.IsTransmitCompletion(term.TransmitStatus()) {
			transmit = true
			status = term.TransmitStatus()
			term.SetTransmitCommand(devices.CmdACK)
		} else {
			status = term.Status()
			term.SetCommand(devices.CmdACK)
		}
	} else {
		reg.SetCommand(devices.CmdACK)
	}
	c.Bus.ClearPending(line, dev)

	q := c.DeviceQueue(line, transmit)
	waiter := q.RemoveHead()
	if waiter == pcb.Nil {
		// The intended recipient was terminated while blocked; the
		// completion is silently dropped (§5).
		if c.Running != pcb.Nil {
			return nil
		}
		c.Schedule()
		return nil
	}

	c.Pool.Get(waiter).ClearBlockedOnDevice()
	c.SoftBlock--
	c.SendMessage(c.SSI, waiter, status)

	if c.Running != pcb.Nil {
		return nil
	}
	c.Schedule()
	return nil
}
