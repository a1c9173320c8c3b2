package observer

import (
	"sort"
	"sync"

	"whisperwire.ai/internal/observerproto"
)

// Hub relays the frames of live player sessions to observers. Slow observers lose
// frames rather than stall the player connection.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*liveSession
	nextSub  uint64
}

type liveSession struct {
	info      observerproto.LiveSession
	lastState []byte
	subs      map[uint64]chan []byte
}

func NewHub() *Hub {
	return &Hub{sessions: map[string]*liveSession{}}
}

// Open registers a session. Opening an id twice keeps the existing subscribers.
func (h *Hub) Open(id, seed string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[id]; ok {
		return
	}
	h.sessions[id] = &liveSession{
		info: observerproto.LiveSession{SessionID: id, Seed: seed},
		subs: map[uint64]chan []byte{},
	}
}

// PublishState relays a STATE frame and keeps it for observers that join later.
func (h *Hub) PublishState(id string, round int, phase string, frame []byte) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ls, ok := h.sessions[id]
	if !ok {
		return
	}
	ls.info.Round, ls.info.Phase = round, phase
	ls.lastState = frame
	ls.fanout(frame)
}

func (h *Hub) Publish(id string, frame []byte) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ls, ok := h.sessions[id]; ok {
		ls.fanout(frame)
	}
}

func (ls *liveSession) fanout(frame []byte) {
	for _, ch := range ls.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Close drops a session and closes every subscriber channel.
func (h *Hub) Close(id string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ls, ok := h.sessions[id]
	if !ok {
		return
	}
	for sid, ch := range ls.subs {
		close(ch)
		delete(ls.subs, sid)
	}
	delete(h.sessions, id)
}

// Subscribe returns a frame channel primed with the latest STATE. The channel is closed
// when the session ends; cancel detaches early.
func (h *Hub) Subscribe(id string, buffer int) (<-chan []byte, func(), bool) {
	if h == nil {
		return nil, func() {}, false
	}
	if buffer <= 0 {
		buffer = 64
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ls, ok := h.sessions[id]
	if !ok {
		return nil, func() {}, false
	}
	h.nextSub++
	sid := h.nextSub
	ch := make(chan []byte, buffer)
	if ls.lastState != nil {
		ch <- ls.lastState
	}
	ls.subs[sid] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.sessions[id]; ok {
			if c, ok := cur.subs[sid]; ok {
				close(c)
				delete(cur.subs, sid)
			}
		}
	}
	return ch, cancel, true
}

// Live lists the open sessions by id.
func (h *Hub) Live() []observerproto.LiveSession {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]observerproto.LiveSession, 0, len(h.sessions))
	for _, ls := range h.sessions {
		out = append(out, ls.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
