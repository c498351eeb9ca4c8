package util

import "time"

// Clock abstracts wall time so order entry timestamps can be fixed in
// tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
