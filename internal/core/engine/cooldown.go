package engine

import "time"

// Cooldown is a local request-shedding window armed by quota errors.
type Cooldown struct {
	Until time.Time
}

// Arm sets the window to end at now+d, replacing any earlier window.
func (c *Cooldown) Arm(now time.Time, d time.Duration) time.Time {
	c.Until = now.Add(d)
	return c.Until
}

// Active reports whether now falls inside the window.
func (c Cooldown) Active(now time.Time) bool {
	return now.Before(c.Until)
}

// Remaining returns the time left in the window.
func (c Cooldown) Remaining(now time.Time) time.Duration {
	if !c.Active(now) {
		return 0
	}
	return c.Until.Sub(now)
}

// Reset clears the window.
func (c *Cooldown) Reset() {
	c.Until = time.Time{}
}
