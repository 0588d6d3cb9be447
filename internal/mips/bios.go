package mips

import (
	"errors"
	"sync/atomic"
)

// ErrHalt is returned up through the dispatch loop when the BIOS HALT
// instruction was issued — a clean shutdown, not a failure.
var ErrHalt = errors.New("mips: machine halted")

// ErrPanic is returned when the BIOS PANIC instruction was issued — a
// system-fatal condition (deadlock, SSI death, mutex-mediator death).
var ErrPanic = errors.New("mips: machine panicked")

// BIOSDataPage is the fixed physical page where the firmware deposits the
// saved exception state before transferring control to the nucleus entry
// point.
type BIOSDataPage struct {
	Saved State

	halted atomic.Bool
	panics atomic.Bool
}

// NewBIOSDataPage returns a zeroed BIOS data page.
func NewBIOSDataPage() *BIOSDataPage {
	return &BIOSDataPage{}
}

// LDST loads a full processor state, the BIOS's atomic "jump into this
// state" instruction.
func (b *BIOSDataPage) LDST(s *State) {
	b.Saved = *s
}

// HALT stops the machine cleanly; callers observe ErrHalt.
func (b *BIOSDataPage) HALT() error {
	b.halted.Store(true)
	return ErrHalt
}

// PANIC stops the machine on a system-fatal condition.
func (b *BIOSDataPage) PANIC() error {
	b.panics.Store(true)
	return ErrPanic
}

func (b *BIOSDataPage) Halted() bool { return b.halted.Load() }
func (b *BIOSDataPage) Panicked() bool { return b.panics.Load() }
