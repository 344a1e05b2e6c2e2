package api

import (
	"sync"

	"github.com/talgya/hexworld/internal/hex"
)

// MeshUpdate is pushed to stream clients after every rebuild.
type MeshUpdate struct {
	Mode      string           `json:"mode"`
	Cells     []hex.Coordinate `json:"cells"`
	Vertices  int              `json:"vertices"`
	Triangles int              `json:"triangles"`
}

// hub fans mesh updates out to stream subscribers. Slow subscribers miss
// updates rather than block the rebuild path.
type hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan MeshUpdate
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]chan MeshUpdate)}
}

func (h *hub) Subscribe() (uint64, <-chan MeshUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan MeshUpdate, 16)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *hub) Broadcast(u MeshUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// closeAll disconnects every subscriber.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
