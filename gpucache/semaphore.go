package gpucache

import (
	"context"
	"sync"
)

// FIFOSemaphore is a capacity-one mutex with strictly FIFO acquisition
// order, per spec.md §5: "A process-wide semaphore with capacity one
// guards all GPU work... Acquisition is FIFO." A plain sync.Mutex does
// not guarantee FIFO ordering under contention, so waiters are queued
// explicitly.
type FIFOSemaphore struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// NewFIFOSemaphore returns an unheld semaphore.
func NewFIFOSemaphore() *FIFOSemaphore {
	return &FIFOSemaphore{}
}

// Acquire blocks until the semaphore is free and this call is first in
// line, or ctx is done. Every run (spec.md §4.5/§5) acquires before
// encoding GPU commands.
func (s *FIFOSemaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if !s.held {
		s.held = true
		s.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	s.waiters = append(s.waiters, wait)
	s.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == wait {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// Release already popped wait and handed us the permit between
		// ctx.Done() firing and this lookup; this call is returning an
		// error, so pass the permit on instead of holding it forever.
		s.Release()
		return ctx.Err()
	}
}

// Release hands the semaphore to the next FIFO waiter, if any, else
// marks it free. Called after the last map_async resolves.
func (s *FIFOSemaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(next)
		return
	}
	s.held = false
}
