// Package clock abstracts wall time and delayed callbacks.
//
// Every asynchronous step of the pipeline (queue delay, progress ticks,
// add-on delays, schedule confirmation) is a timer. Going through this
// interface instead of calling time.AfterFunc directly lets tests drive the
// whole pipeline with virtual time (see Fake).
package clock

import "time"

// Timer is a pending callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Clock tells the time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the production clock backed by the time package.
type Real struct{}

// New returns the wall clock.
func New() Real {
	return Real{}
}

// Now returns the current wall time.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f on its own goroutine once d has elapsed.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
