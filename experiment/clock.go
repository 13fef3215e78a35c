package experiment

import "time"

// Clock supplies wall-clock time to the engine. Injected so that expiry logic
// is testable with a fixed time source.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
