// Package scheduler runs time-delayed callbacks on a single event
// queue. Callbacks are keyed; rescheduling a key replaces its pending
// callback, and a callback that has been cancelled or superseded by the
// time its timer fires is discarded rather than run stale.
package scheduler

import (
	"sync"
	"time"
)

type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*time.Timer

	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

func New() *Scheduler {
	s := &Scheduler{
		pending: make(map[string]*time.Timer),
		queue:   make(chan func(), 16),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// run drains the queue on one goroutine, so callbacks never execute
// concurrently with each other.
func (s *Scheduler) run() {
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.done:
			return
		}
	}
}

// Schedule queues fn to run after delay. A pending callback under the
// same key is dropped first.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.pending[key]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		live := s.pending[key] == timer
		if live {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		if !live {
			return
		}
		select {
		case s.queue <- fn:
		case <-s.done:
		}
	})
	s.pending[key] = timer
}

// Cancel drops the pending callback for key, if any.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[key]; ok {
		t.Stop()
		delete(s.pending, key)
	}
}

// CancelAll drops every pending callback.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.pending {
		t.Stop()
		delete(s.pending, key)
	}
}

// Close stops the queue goroutine. Pending timers that fire afterwards
// are discarded.
func (s *Scheduler) Close() {
	s.CancelAll()
	s.closeOnce.Do(func() { close(s.done) })
}
