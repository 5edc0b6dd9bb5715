package cache

import (
	"sync"
	"time"
)

// Clock — отметка последней мутации. Любая успешная мутация задач или
// тегов двигает ее вперед, и все закэшированные списки протухают разом.
type Clock struct {
	mu   sync.Mutex
	last int64
}

func NewClock() *Clock {
	return &Clock{}
}

// Bump строго монотонен: даже при одинаковом системном времени
// значение растет.
func (c *Clock) Bump() {
	now := time.Now().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
}

func (c *Clock) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
