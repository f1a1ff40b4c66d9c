package booking

import "sync"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier presents user-facing feedback. Calls are fire-and-forget.
type Notifier interface {
	Notify(level Level, message string)
}

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Collector is a Notifier that keeps notices so an HTTP response can carry them.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *Collector) Notify(level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, Notice{Level: level, Message: message})
}

func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}
