package scan

import (
	"encoding/json"
	"sync"

	"github.com/L1nMay/rangeprobe/internal/model"
)

const (
	EventState  = "state"
	EventResult = "result"
)

// Event is what SSE subscribers receive while a session runs.
type Event struct {
	Type    string             `json:"type"`
	Session string             `json:"session"`
	State   State              `json:"state,omitempty"`
	Result  *model.ProbeResult `json:"result,omitempty"`
	Probed  int                `json:"probed"`
	Total   int                `json:"total"`
}

type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Publish never blocks. A subscriber whose buffer is full is dropped and its
// channel closed, so it never silently misses a state change.
func (h *Hub) Publish(ev Event) {
	b, _ := json.Marshal(ev)
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}
