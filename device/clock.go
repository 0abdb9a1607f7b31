package device

import "time"

type Timer interface {
	Stop() bool
}

// Clock is the time source of a Device. Sleep is used for the settle delays
// between positioner commands, AfterFunc schedules the lock polls.
type Clock interface {
	Sleep(d time.Duration)
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
