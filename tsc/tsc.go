// Package tsc provides the time-stamp-counter abstraction the netpace core
// depends on. A tool built for high-resolution pacing would read the CPU's
// TSC register directly and calibrate it against a reference clock at
// startup; that calibration is an external collaborator the core only
// ever sees through a narrow interface. Clock below is that interface, and
// NanoClock is the portable stand-in: it counts nanoseconds directly, so
// Hz is always 1e9 and ToNanos is the identity function.
package tsc

import "time"

// Clock is the narrow surface the core depends on: a free-running counter,
// its frequency, and a conversion from a counter delta to nanoseconds. A
// real TSC-backed implementation would read the CPU cycle counter in Now
// and use a calibrated Hz to implement ToNanos; NanoClock below substitutes
// wall-clock nanoseconds (time.Now().UnixNano), which needs no calibration
// step. It is not monotonic: a step of the system clock moves it.
type Clock interface {
	// Now returns the current counter value.
	Now() uint64
	// ToNanos converts a counter delta (as produced by subtracting two
	// Now() results) into nanoseconds.
	ToNanos(delta uint64) int64
	// Hz returns the counter's frequency, used for deriving
	// ticks-per-message from a target messages-per-second rate and the
	// phase's end tick from its duration.
	Hz() uint64
}

// NanoClock is a Clock backed by time.Now(); one "cycle" is one nanosecond.
type NanoClock struct{}

// Now returns the current wall-clock time as a nanosecond counter value.
func (NanoClock) Now() uint64 {
	return uint64(time.Now().UnixNano())
}

// ToNanos is the identity conversion, since NanoClock's counter already
// counts nanoseconds.
func (NanoClock) ToNanos(delta uint64) int64 {
	return int64(delta)
}

// Hz returns one cycle per nanosecond.
func (NanoClock) Hz() uint64 {
	return uint64(time.Second)
}
