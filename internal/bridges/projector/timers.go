package projector

import (
	"fmt"
	"time"
)

// TimerName identifies one of the session's timers.
type TimerName int

// Session timers.
const (
	TimerReconnect TimerName = iota
	TimerStatusPoll
	TimerInfoPoll
)

func (n TimerName) String() string {
	switch n {
	case TimerReconnect:
		return "reconnect"
	case TimerStatusPoll:
		return "status_poll"
	case TimerInfoPoll:
		return "info_poll"
	default:
		return fmt.Sprintf("timer(%d)", int(n))
	}
}

// Timer is a pending delayed call. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler creates delayed calls. Tests substitute a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timerEntry is the single live handle for one timer name.
type timerEntry struct {
	timer Timer
	delay time.Duration
	gen   uint64
}

// timerRegistry holds at most one live handle per TimerName.
//
// A firing carries the generation it was scheduled with. Refresh and Cancel
// move the generation on, so a firing that was already in flight when its
// handle was replaced is recognised as stale and discarded. That keeps the
// "one logical timer never fires twice per schedule" rule even though
// time.Timer.Stop cannot recall a callback that has already started.
//
// An entry stays live after it fires, so a later Refresh reschedules it.
// Only Cancel forgets it.
//
// Not safe for concurrent use; owned by the session loop.
type timerRegistry struct {
	sched   Scheduler
	entries map[TimerName]*timerEntry
	gen     uint64
	fire    func(name TimerName, gen uint64)
	logger  Logger
}

func newTimerRegistry(sched Scheduler, fire func(TimerName, uint64), logger Logger) *timerRegistry {
	return &timerRegistry{
		sched:   sched,
		entries: make(map[TimerName]*timerEntry),
		fire:    fire,
		logger:  logger,
	}
}

// Arm starts the timer, or refreshes it when already live.
func (r *timerRegistry) Arm(name TimerName, delay time.Duration) {
	if e, ok := r.entries[name]; ok {
		e.delay = delay
		r.reschedule(name, e)
		return
	}

	e := &timerEntry{delay: delay}
	r.entries[name] = e
	r.reschedule(name, e)
}

// Refresh reschedules a live timer with its existing delay. It reports
// false, and only logs, when the timer is not live.
func (r *timerRegistry) Refresh(name TimerName) bool {
	e, ok := r.entries[name]
	if !ok {
		r.logger.Debug("refresh of idle timer ignored", "timer", name.String())
		return false
	}
	r.reschedule(name, e)
	return true
}

// Cancel stops and forgets the timer. Cancelling an idle timer is a no-op.
func (r *timerRegistry) Cancel(name TimerName) {
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.timer.Stop()
	r.gen++
	delete(r.entries, name)
}

// CancelAll cancels every live timer.
func (r *timerRegistry) CancelAll() {
	for name := range r.entries {
		r.Cancel(name)
	}
}

// Armed reports whether the timer is live.
func (r *timerRegistry) Armed(name TimerName) bool {
	_, ok := r.entries[name]
	return ok
}

// Fired validates a firing. It returns false for stale generations and for
// timers cancelled since the firing was scheduled.
func (r *timerRegistry) Fired(name TimerName, gen uint64) bool {
	e, ok := r.entries[name]
	return ok && e.gen == gen
}

func (r *timerRegistry) reschedule(name TimerName, e *timerEntry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	r.gen++
	gen := r.gen
	e.gen = gen
	e.timer = r.sched.AfterFunc(e.delay, func() { r.fire(name, gen) })
}
