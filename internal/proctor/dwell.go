package proctor

import "time"

// DwellTimer is a cancellable scheduled task: Arm when an adverse condition
// starts, Cancel when it clears, and Accept the fire when it elapses.
//
// Every Arm gets a new generation. The fire callback carries the generation
// it was armed with, so a fire that was already in flight when Cancel ran is
// recognised as stale by Accept and discarded.
//
// A DwellTimer is not safe for concurrent use; the monitor's consumer
// goroutine owns it. Only the fire callback runs elsewhere, and it must do
// nothing but hand the generation back to the owner.
type DwellTimer struct {
	clock  Clock
	window time.Duration
	fire   func(gen uint64)

	gen   uint64
	timer Timer
	armed bool
}

// NewDwellTimer creates a disarmed timer that calls fire(gen) once window
// has elapsed after an Arm that was not cancelled.
func NewDwellTimer(clock Clock, window time.Duration, fire func(gen uint64)) *DwellTimer {
	if clock == nil {
		clock = SystemClock
	}
	return &DwellTimer{clock: clock, window: window, fire: fire}
}

// Arm schedules the fire. It returns false if the timer was already armed,
// in which case the original deadline is kept.
func (t *DwellTimer) Arm() bool {
	if t.armed {
		return false
	}
	t.gen++
	gen := t.gen
	t.armed = true
	t.timer = t.clock.AfterFunc(t.window, func() { t.fire(gen) })
	return true
}

// Cancel disarms the timer. It returns true if a pending fire was cancelled.
func (t *DwellTimer) Cancel() bool {
	if !t.armed {
		return false
	}
	t.armed = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return true
}

// Accept reports whether a fire with generation gen is current, and disarms
// the timer if so.
func (t *DwellTimer) Accept(gen uint64) bool {
	if !t.armed || gen != t.gen {
		return false
	}
	t.armed = false
	t.timer = nil
	return true
}

// Armed reports whether a fire is pending.
func (t *DwellTimer) Armed() bool {
	return t.armed
}
