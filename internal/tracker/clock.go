package tracker

import "time"

// Clock supplies the current time. Injected so elapsed-time computation is
// deterministic in tests; production uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
