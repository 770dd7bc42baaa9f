package ports

import "time"

// Task is a handle to a scheduled callback that can be cancelled before it
// fires.
type Task interface {
	// Stop cancels the task. Returns false if it already fired or was
	// stopped.
	Stop() bool
}

// Scheduler schedules callbacks to run after a delay. Production code uses
// the wall clock; tests inject a manual implementation so no test sleeps.
type Scheduler interface {
	// AfterFunc runs fn on its own goroutine after d elapses.
	AfterFunc(d time.Duration, fn func()) Task

	// Now returns the current time.
	Now() time.Time
}

// timerTask wraps time.Timer as a Task.
type timerTask struct {
	t *time.Timer
}

func (t *timerTask) Stop() bool {
	return t.t.Stop()
}

// wallClock is the real-time Scheduler.
type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, fn func()) Task {
	return &timerTask{t: time.AfterFunc(d, fn)}
}

func (wallClock) Now() time.Time {
	return time.Now()
}

// WallClock returns the real-time Scheduler backed by time.AfterFunc.
func WallClock() Scheduler {
	return wallClock{}
}
