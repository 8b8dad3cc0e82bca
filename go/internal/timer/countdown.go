package timer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// PollInterval is how often a running timer recomputes its remaining time.
	PollInterval = 100 * time.Millisecond
	// TickThrottle is the minimum wall time between two OnTick calls.
	TickThrottle = 100 * time.Millisecond

	LowTimeThreshold      = 30
	CriticalTimeThreshold = 10
)

// State is the lifecycle position of a CountdownTimer.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

// Options configures a CountdownTimer.
type Options struct {
	// Duration is the initial duration in seconds.
	Duration  int
	OnTick    func(remaining int)
	OnFinish  func()
	AutoStart bool
	// Clock defaults to the scheduler's clock or the real clock.
	Clock clockwork.Clock
	// Scheduler defaults to a ClockScheduler on Clock.
	Scheduler Scheduler
}

// CountdownTimer counts down whole seconds. Remaining time is derived from
// the elapsed time since the last anchor, never from counting polls, so late
// or skipped polls do not accumulate drift.
//
// Callbacks run outside the timer's lock and may call back into the timer.
type CountdownTimer struct {
	clock    clockwork.Clock
	sched    Scheduler
	onTick   func(int)
	onFinish func()

	mu        sync.Mutex
	initial   int
	remaining int
	base      int
	anchor    time.Time
	running   bool
	paused    bool
	finished  bool
	closed    bool
	lastTick  time.Time
	cancel    func()
	gen       uint64
}

// New creates a timer. It starts immediately when opts.AutoStart is set.
func New(opts Options) *CountdownTimer {
	clock := opts.Clock
	if clock == nil {
		if ms, ok := opts.Scheduler.(*ManualScheduler); ok {
			clock = ms.Clock()
		} else {
			clock = clockwork.NewRealClock()
		}
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = NewClockScheduler(clock)
	}
	duration := max(0, opts.Duration)

	t := &CountdownTimer{
		clock:     clock,
		sched:     sched,
		onTick:    opts.OnTick,
		onFinish:  opts.OnFinish,
		initial:   duration,
		remaining: duration,
		base:      duration,
	}
	if opts.AutoStart {
		t.Start()
	}
	return t
}

// Start begins counting down from the current remaining time. It is a
// no-op when already running, when closed, or when no time remains.
func (t *CountdownTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || (t.running && !t.paused) || t.remaining == 0 {
		return
	}
	t.base = t.remaining
	t.anchor = t.clock.Now()
	t.running = true
	t.paused = false
	t.finished = false
	t.scheduleLocked()
}

// Pause freezes the remaining time at its last computed value.
func (t *CountdownTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || t.paused {
		return
	}
	t.paused = true
	t.cancelLocked()
}

// Resume starts a new cycle from the remaining time, so time spent paused
// is never counted.
func (t *CountdownTimer) Resume() {
	t.Start()
}

// Stop cancels polling and keeps the remaining time. Safe to call from any state.
func (t *CountdownTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.finished = false
}

// Reset stops the timer and restores the initial duration.
func (t *CountdownTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.finished = false
	t.remaining = t.initial
	t.base = t.initial
}

// SetTime sets the remaining time, clamped to [0, Duration]. A running
// timer is re-anchored at the new value; setting 0 while running finishes it.
func (t *CountdownTimer) SetTime(seconds int) {
	t.mu.Lock()
	v := clamp(seconds, 0, t.initial)
	t.remaining = v

	finish := false
	switch {
	case !t.running:
		t.base = v
	case !t.paused:
		t.base = v
		t.anchor = t.clock.Now()
		if v == 0 {
			t.stopLocked()
			t.finished = true
			finish = true
		}
	}
	t.mu.Unlock()

	if finish && t.onFinish != nil {
		t.onFinish()
	}
}

func (t *CountdownTimer) AddTime(seconds int) {
	t.SetTime(t.Remaining() + seconds)
}

func (t *CountdownTimer) SubtractTime(seconds int) {
	t.SetTime(t.Remaining() - seconds)
}

// SetDuration changes the initial duration. When the timer is not running
// the remaining time follows it.
func (t *CountdownTimer) SetDuration(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.initial = max(0, seconds)
	if !t.running {
		t.remaining = t.initial
		t.base = t.initial
		t.finished = false
	}
}

// Close stops the timer for good. Later calls to Start are ignored.
func (t *CountdownTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.closed = true
}

func (t *CountdownTimer) scheduleLocked() {
	t.cancelLocked()
	gen := t.gen
	t.cancel = t.sched.Every(PollInterval, func() { t.poll(gen) })
}

// cancelLocked drops the scheduled poll. Bumping gen also discards a poll
// already in flight on another goroutine.
func (t *CountdownTimer) cancelLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
}

func (t *CountdownTimer) stopLocked() {
	t.running = false
	t.paused = false
	t.anchor = time.Time{}
	t.cancelLocked()
}

func (t *CountdownTimer) poll(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.running || t.paused {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	elapsed := int(now.Sub(t.anchor) / time.Second)
	next := max(0, t.base-elapsed)
	if next == t.remaining {
		t.mu.Unlock()
		return
	}
	t.remaining = next

	tick := false
	if t.onTick != nil && (t.lastTick.IsZero() || now.Sub(t.lastTick) >= TickThrottle) {
		t.lastTick = now
		tick = true
	}
	finish := false
	if next == 0 {
		t.stopLocked()
		t.finished = true
		finish = true
	}
	t.mu.Unlock()

	if tick {
		t.onTick(next)
	}
	if finish && t.onFinish != nil {
		t.onFinish()
	}
}

// State reports the lifecycle state.
func (t *CountdownTimer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.finished:
		return StateFinished
	case t.running && t.paused:
		return StatePaused
	case t.running:
		return StateRunning
	default:
		return StateIdle
	}
}

func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *CountdownTimer) Duration() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initial
}

func (t *CountdownTimer) IsRunning() bool {
	return t.State() == StateRunning
}

func (t *CountdownTimer) IsPaused() bool {
	return t.State() == StatePaused
}

// Formatted returns the remaining time as MM:SS.
func (t *CountdownTimer) Formatted() string {
	return FormatTime(t.Remaining())
}

// Percentage returns the remaining share of the initial duration, 0..100.
func (t *CountdownTimer) Percentage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Percentage(t.remaining, t.initial)
}

func (t *CountdownTimer) IsLowTime() bool {
	return t.Remaining() <= LowTimeThreshold
}

func (t *CountdownTimer) IsCriticalTime() bool {
	return t.Remaining() <= CriticalTimeThreshold
}

// FormatTime renders seconds as zero-padded MM:SS.
func FormatTime(seconds int) string {
	seconds = max(0, seconds)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Percentage returns round(remaining/total*100), or 0 when total is 0.
func Percentage(remaining, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(remaining) * 100 / float64(total)))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
