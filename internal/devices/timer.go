package devices

import "time"

// TIMESLICE is the fixed scheduler quantum (§6), in time.Duration units —
// the source spec expresses these as "timer units" on real hardware; here
// we use wall-clock durations the way the teacher's CLINT measures mtime
// against time.Now() (internal/hv/riscv/rv64/clint.go).
const TIMESLICE = 5 * time.Millisecond

// PSECOND is the pseudo-clock tick the interval timer reloads to (§6).
const PSECOND = 100 * time.Millisecond

// LocalTimer is the per-CPU preemption timer: set to a duration, it fires
// once and must be explicitly reloaded, mirroring the BIOS's single-shot
// TIMER register.
type LocalTimer struct {
	deadline time.Time
	armed    bool
}

// Set arms the timer to fire after d.
func (t *LocalTimer) Set(d time.Duration) {
	t.deadline = time.Now().Add(d)
	t.armed = true
}

// Off disables the timer without firing it.
func (t *LocalTimer) Off() {
	t.armed = false
}

// Expired reports whether the timer has fired.
func (t *LocalTimer) Expired() bool {
	return t.armed && !time.Now().Before(t.deadline)
}

// IntervalTimer is the single global pseudo-clock source, auto-reloading
// every PSECOND once started (§4.6, §6).
type IntervalTimer struct {
	deadline time.Time
}

// Start arms the interval timer for one PSECOND tick.
func (t *IntervalTimer) Start() {
	t.deadline = time.Now().Add(PSECOND)
}

// Fired reports and, if true, reloads the timer for the next tick — the
// "reload the interval timer to one pseudo-second" step of §4.6 folded
// into the poll so callers never forget it.
func (t *IntervalTimer) Fired() bool {
	if !time.Now().Before(t.deadline) {
		t.deadline = t.deadline.Add(PSECOND)
		if t.deadline.Before(time.Now()) {
			t.deadline = time.Now().Add(PSECOND)
		}
		return true
	}
	return false
}
