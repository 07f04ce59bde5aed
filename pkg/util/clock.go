package util

import "time"

// Clock is wall time for progress reporting only; block timestamps come from
// the block stream.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock advances by Step on every call to Now.
type FixedClock struct {
	T    time.Time
	Step time.Duration
}

func (c *FixedClock) Now() time.Time {
	t := c.T
	c.T = c.T.Add(c.Step)
	return t
}
