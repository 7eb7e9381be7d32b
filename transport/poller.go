package transport

import "time"

// Event is one readiness notification for the registered socket
type Event struct {
	Readable bool
	Writable bool
}

// pollTimeout converts a wait duration to poll(2)/epoll_wait milliseconds.
// A negative duration blocks indefinitely; sub-millisecond waits round up
// so a pending deadline never turns into a busy loop.
func pollTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
