package ttlset

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Manual scheduler
// --------------------------------------------------------------------------

// manualScheduler fires callbacks only when the test advances its clock
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	due     time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) ITimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d < 0 {
		d = 0
	}
	s.seq++
	t := &manualTimer{s: s, due: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d and runs every due timer in order
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.due <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

func newManualSet(onExpire func(string)) (*Set[string], *manualScheduler) {
	sched := &manualScheduler{}
	return New(Options[string]{Scheduler: sched, OnExpire: onExpire}), sched
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestExpiry(t *testing.T) {
	s, sched := newManualSet(nil)

	s.Add("x", 10*time.Millisecond)
	assert.True(t, s.Has("x"))
	assert.True(t, s.Contains("x"))

	sched.Advance(9 * time.Millisecond)
	assert.True(t, s.Has("x"))

	sched.Advance(1 * time.Millisecond)
	assert.False(t, s.Has("x"))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Pending())
}

func TestZeroTTLExpiresOnNextTick(t *testing.T) {
	s, sched := newManualSet(nil)

	s.Add("now", 0)
	s.Add("negative", -time.Second)
	assert.True(t, s.Has("now"), "item must be present until the scheduler runs")
	assert.True(t, s.Has("negative"))

	sched.Advance(0)
	assert.False(t, s.Has("now"))
	assert.False(t, s.Has("negative"))
}

// TestFirstExpiryWins checks that a second Add with a shorter ttl removes the
// item early, and that the longer timer fires later without effect.
func TestFirstExpiryWins(t *testing.T) {
	var expired []string
	s, sched := newManualSet(func(item string) { expired = append(expired, item) })

	s.Add("x", 100*time.Millisecond)
	s.Add("x", 10*time.Millisecond)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.Pending())

	sched.Advance(10 * time.Millisecond)
	assert.False(t, s.Has("x"), "the first timer to fire removes the item")
	assert.Equal(t, 1, s.Pending())

	sched.Advance(90 * time.Millisecond)
	assert.False(t, s.Has("x"))
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, []string{"x"}, expired, "the later timer must be a no-op")
}

// TestLongerReAddDoesNotExtend checks the mirrored case: a later Add with a
// longer ttl does not keep the item alive past the first lifetime.
func TestLongerReAddDoesNotExtend(t *testing.T) {
	s, sched := newManualSet(nil)

	s.Add("x", 10*time.Millisecond)
	sched.Advance(5 * time.Millisecond)
	s.Add("x", 100*time.Millisecond)

	sched.Advance(5 * time.Millisecond)
	assert.False(t, s.Has("x"))
}

func TestClearCancelsTimers(t *testing.T) {
	var expired []string
	s, sched := newManualSet(func(item string) { expired = append(expired, item) })

	for _, item := range []string{"a", "b", "c"} {
		s.Add(item, time.Hour)
	}
	require.Equal(t, 3, s.Pending())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Pending())

	sched.Advance(2 * time.Hour)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, expired)

	// the set stays usable after Clear
	s.Add("a", time.Minute)
	assert.True(t, s.Has("a"))
	sched.Advance(time.Minute)
	assert.False(t, s.Has("a"))
}

// TestClearBeatsRunningCallback simulates a timer callback that was already
// dispatched by the scheduler when Clear ran.
func TestClearBeatsRunningCallback(t *testing.T) {
	var fn func()
	sched := schedulerFunc(func(_ time.Duration, f func()) ITimer {
		fn = f
		return stoppedTimer{}
	})
	s := New(Options[string]{Scheduler: sched})

	s.Add("x", time.Second)
	stale := fn
	s.Clear()

	s.Add("x", time.Hour)
	s.Add("y", time.Hour)

	// the callback of the cleared "x" must not touch the new state
	stale()
	assert.True(t, s.Has("x"))
	assert.True(t, s.Has("y"))
	assert.Equal(t, 2, s.Pending())
}

func TestDeleteKeepsTimer(t *testing.T) {
	var expired []string
	s, sched := newManualSet(func(item string) { expired = append(expired, item) })

	s.Add("x", 10*time.Millisecond)
	s.Delete("x")
	assert.False(t, s.Has("x"))
	assert.Equal(t, 1, s.Pending())

	sched.Advance(10 * time.Millisecond)
	assert.Equal(t, 0, s.Pending())
	assert.Empty(t, expired, "deleted items do not expire")

	// deleting a missing item is fine
	s.Delete("missing")
	assert.False(t, s.Has("missing"))
}

func TestComparableItems(t *testing.T) {
	type signal struct {
		Host string
		Port int
	}
	sched := &manualScheduler{}
	s := New(Options[signal]{Scheduler: sched})

	s.Add(signal{"example.org", 443}, time.Second)
	assert.True(t, s.Has(signal{"example.org", 443}))
	assert.False(t, s.Has(signal{"example.org", 80}))
}

func TestRealScheduler(t *testing.T) {
	s := New(Options[string]{})

	s.Add("x", 10*time.Millisecond)
	assert.True(t, s.Has("x"))
	assert.Eventually(t, func() bool { return !s.Has("x") }, time.Second, time.Millisecond)

	s.Add("y", time.Hour)
	s.Clear()
	assert.Equal(t, 0, s.Pending())
}

func TestConcurrentUse(t *testing.T) {
	s := New(Options[int]{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(g*1000+i, time.Duration(i%5)*time.Millisecond)
				s.Has(i)
				if i%50 == 0 {
					s.Clear()
				}
			}
		}(g)
	}
	wg.Wait()
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Pending())
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

type schedulerFunc func(d time.Duration, fn func()) ITimer

func (f schedulerFunc) AfterFunc(d time.Duration, fn func()) ITimer { return f(d, fn) }

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }
