package ttlset

import (
	"sync"
	"time"

	"github.com/ValentinKolb/tally/lib/common"
)

// Options configures a Set
type Options[T comparable] struct {
	// Scheduler runs the expiry callbacks (nil = RealScheduler)
	Scheduler IScheduler
	// OnExpire is called after a timer removed a present item.
	// It runs outside the lock, so it may call back into the set.
	OnExpire func(item T)
}

// entry is the bookkeeping handle of one scheduled expiry
type entry[T comparable] struct {
	item  T
	timer ITimer
}

// Set is a membership set where every Add schedules an independent removal
type Set[T comparable] struct {
	mu     sync.Mutex
	items  map[T]struct{}
	timers map[*entry[T]]struct{}

	scheduler IScheduler
	onExpire  func(item T)
}

// New creates an empty Set
func New[T comparable](opts Options[T]) *Set[T] {
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	return &Set[T]{
		items:     make(map[T]struct{}),
		timers:    make(map[*entry[T]]struct{}),
		scheduler: opts.Scheduler,
		onExpire:  opts.OnExpire,
	}
}

// Add inserts item and schedules its removal after ttl. A ttl <= 0 removes the
// item on the next scheduler tick, it never means "no expiry".
//
// Adding an item that is already present schedules a second timer instead of
// resetting the first one. The item is removed by whichever timer fires first,
// so a shorter earlier lifetime is not extended by a later Add.
func (s *Set[T]) Add(item T, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry[T]{item: item}
	s.items[item] = struct{}{}
	s.timers[e] = struct{}{}
	// the callback cannot run before we release the lock, so e.timer is set in time
	e.timer = s.scheduler.AfterFunc(ttl, func() { s.expire(e) })
}

// expire is the timer callback of e
func (s *Set[T]) expire(e *entry[T]) {
	s.mu.Lock()
	if _, ok := s.timers[e]; !ok {
		// Clear ran in the meantime
		s.mu.Unlock()
		return
	}
	delete(s.timers, e)
	_, present := s.items[e.item]
	delete(s.items, e.item)
	s.mu.Unlock()

	if !present {
		return
	}
	common.GetLogger(common.LogTTLSet).Debugf("item %v expired", e.item)
	if s.onExpire != nil {
		s.onExpire(e.item)
	}
}

// Has reports whether item is currently present
func (s *Set[T]) Has(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[item]
	return ok
}

// Contains is an alias for Has
func (s *Set[T]) Contains(item T) bool {
	return s.Has(item)
}

// Delete removes item immediately. Pending timers for item are not cancelled,
// they fire later without effect.
func (s *Set[T]) Delete(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, item)
}

// Clear cancels every pending timer and removes all items. No expiry callback
// has any effect after Clear returns.
func (s *Set[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for e := range s.timers {
		e.timer.Stop()
	}
	clear(s.timers)
	clear(s.items)
}

// Len returns the number of present items
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Pending returns the number of timers that have not fired yet
func (s *Set[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
