package agent

import (
	"sync"
	"time"
)

// Cooldown suspends low-stakes AI calls for a window after a failure.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	until  time.Time
}

func NewCooldown(window time.Duration, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{window: window, now: now}
}

func (c *Cooldown) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.until)
}

func (c *Cooldown) Trip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = c.now().Add(c.window)
}

func (c *Cooldown) Until() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until
}
