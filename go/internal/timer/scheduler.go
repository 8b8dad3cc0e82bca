package timer

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler registers recurring callbacks.
type Scheduler interface {
	// Every calls fn every interval until cancel is called. cancel is idempotent.
	Every(interval time.Duration, fn func()) (cancel func())
}

// ClockScheduler runs callbacks from a ticker goroutine on its clock.
type ClockScheduler struct {
	clock clockwork.Clock
}

// NewClockScheduler returns a scheduler on clock. A nil clock uses the real clock.
func NewClockScheduler(clock clockwork.Clock) *ClockScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockScheduler{clock: clock}
}

func (s *ClockScheduler) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

type manualTask struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
}

// ManualScheduler runs callbacks synchronously as its fake clock is
// advanced, so timer behaviour can be tested without waiting.
type ManualScheduler struct {
	clock *clockwork.FakeClock

	mu     sync.Mutex
	tasks  map[int]*manualTask
	nextID int
}

// NewManualScheduler returns a scheduler driven by clock.
func NewManualScheduler(clock *clockwork.FakeClock) *ManualScheduler {
	return &ManualScheduler{clock: clock, tasks: make(map[int]*manualTask)}
}

// Clock returns the fake clock driving the scheduler.
func (s *ManualScheduler) Clock() *clockwork.FakeClock {
	return s.clock
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Millisecond
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.tasks[id] = &manualTask{id: id, interval: interval, next: s.clock.Now().Add(interval), fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	}
}

// Pending reports how many recurring callbacks are registered.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves the clock forward by d, running every callback that falls
// due at its scheduled instant, in time order.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.clock.Now().Add(d)
	for {
		task := s.nextDue(target)
		if task == nil {
			break
		}
		if gap := task.next.Sub(s.clock.Now()); gap > 0 {
			s.clock.Advance(gap)
		}
		s.mu.Lock()
		if _, ok := s.tasks[task.id]; !ok {
			s.mu.Unlock()
			continue
		}
		task.next = task.next.Add(task.interval)
		s.mu.Unlock()

		task.fn()
	}
	if gap := target.Sub(s.clock.Now()); gap > 0 {
		s.clock.Advance(gap)
	}
}

func (s *ManualScheduler) nextDue(target time.Time) *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*manualTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}
