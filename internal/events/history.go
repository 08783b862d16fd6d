package events

import "sync"

// history is a fixed-size ring of recent events, oldest overwritten first.
type history struct {
	mu   sync.RWMutex
	buf  []Event
	head int
	full bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = 100
	}
	return &history{buf: make([]Event, size)}
}

func (h *history) add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.head] = e
	h.head = (h.head + 1) % len(h.buf)
	if h.head == 0 {
		h.full = true
	}
}

// after returns buffered events with ID greater than id, oldest first.
func (h *history) after(id int64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ordered []Event
	if h.full {
		ordered = append(ordered, h.buf[h.head:]...)
	}
	ordered = append(ordered, h.buf[:h.head]...)

	out := make([]Event, 0, len(ordered))
	for _, e := range ordered {
		if e.ID > id {
			out = append(out, e)
		}
	}
	return out
}
