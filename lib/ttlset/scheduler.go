package ttlset

import "time"

// ITimer is a scheduled callback that can be cancelled
type ITimer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was stopped before.
	Stop() bool
}

// IScheduler runs callbacks after a delay. A delay <= 0 means "as soon as possible".
type IScheduler interface {
	AfterFunc(d time.Duration, fn func()) ITimer
}

// RealScheduler schedules callbacks on the runtime timer heap (time.AfterFunc)
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, fn func()) ITimer {
	return time.AfterFunc(d, fn)
}
