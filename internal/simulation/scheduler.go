package simulation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSchedulerClosed is returned when scheduling on a closed scheduler.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Scheduler re-enqueues refresh tasks after a delay. The payload is
// self-contained, so implementations may hand it to any worker; a hosted
// task queue satisfies this interface as well as the in-process timer.
type Scheduler interface {
	Schedule(ctx context.Context, payload *TaskPayload, delay time.Duration) error
}

// TimerScheduler runs refreshes in-process on timers. The handler is bound
// after construction because the runner and the scheduler reference each
// other.
type TimerScheduler struct {
	mu      sync.Mutex
	handler func(context.Context, *TaskPayload)
	closed  bool
	wg      sync.WaitGroup
}

// NewTimerScheduler creates an unbound timer scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Bind sets the refresh handler. Must be called before the first Schedule.
func (s *TimerScheduler) Bind(handler func(context.Context, *TaskPayload)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Schedule fires the handler with the payload after the delay.
func (s *TimerScheduler) Schedule(_ context.Context, payload *TaskPayload, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	if s.handler == nil {
		return errors.New("scheduler not bound")
	}

	handler := s.handler
	s.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		handler(context.Background(), payload)
	})

	return nil
}

// Close stops accepting tasks and waits for pending timers.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

var _ Scheduler = (*TimerScheduler)(nil)
