package app

import "time"

// Clock abstracts "what day is it" so the engine never reads the system
// clock directly. Tests inject fixed dates to drive month-end clamping and
// catch-up scenarios deterministically.
type Clock interface {
	Today() time.Time
}

type systemClock struct{}

func (systemClock) Today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// SystemClock returns a Clock backed by the real system time, normalized to
// midnight UTC.
func SystemClock() Clock {
	return systemClock{}
}
