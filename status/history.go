package status

import "sync"

// History keeps the most recent messages of a feed for callers that poll,
// like the web viewer.
type History struct {
	mu       sync.RWMutex
	limit    int
	messages []Message
	canStart bool
	canStop  bool
	report   string
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 200
	}
	return &History{limit: limit, canStart: true}
}

// Follow records every message of feed until the feed is closed or the
// returned function is called.
func (h *History) Follow(feed *Feed) func() {
	ch, cancel := feed.Subscribe()
	go func() {
		for msg := range ch {
			h.Add(msg)
		}
	}()
	return cancel
}

func (h *History) Add(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch msg.Kind {
	case KindState:
		h.canStart, h.canStop = msg.CanStart, msg.CanStop
	case KindReport:
		h.report = msg.ReportPath
	}
	h.messages = append(h.messages, msg)
	if over := len(h.messages) - h.limit; over > 0 {
		h.messages = append([]Message(nil), h.messages[over:]...)
	}
}

// Messages returns the kept messages, oldest first.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Message(nil), h.messages...)
}

func (h *History) Flags() (canStart, canStop bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.canStart, h.canStop
}

// LastReport is the path of the last report announced, if any.
func (h *History) LastReport() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report
}
