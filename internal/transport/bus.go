package transport

import (
	"context"
	"sync"

	"github.com/cubehall/draftroom/internal/protocol"
)

// Bus is a same-device broadcast medium: every transport obtained from the
// same Bus and connected to the same room sees every other participant's
// messages, like browser tabs sharing one machine.
type Bus struct {
	mu    sync.Mutex
	rooms map[string]map[*BusTransport]struct{}
}

func NewBus() *Bus {
	return &Bus{rooms: make(map[string]map[*BusTransport]struct{})}
}

// Transport returns a fresh, unconnected participant endpoint on the bus.
func (b *Bus) Transport() *BusTransport {
	return &BusTransport{bus: b}
}

// BusTransport is one participant's endpoint on a Bus.
type BusTransport struct {
	bus *Bus

	mu        sync.Mutex
	roomID    string
	handler   Handler
	connected bool
}

var _ Transport = (*BusTransport)(nil)

func (t *BusTransport) Connect(_ context.Context, roomID string, h Handler) error {
	t.mu.Lock()
	t.roomID = roomID
	t.handler = h
	t.connected = true
	t.mu.Unlock()

	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	room := t.bus.rooms[roomID]
	if room == nil {
		room = make(map[*BusTransport]struct{})
		t.bus.rooms[roomID] = room
	}
	room[t] = struct{}{}
	return nil
}

// Send delivers the message synchronously to every other connected transport
// in the room, preserving this sender's order.
func (t *BusTransport) Send(msg protocol.Message) error {
	t.mu.Lock()
	connected, roomID := t.connected, t.roomID
	t.mu.Unlock()
	if !connected {
		return ErrUnavailable
	}

	t.bus.mu.Lock()
	peers := make([]*BusTransport, 0, len(t.bus.rooms[roomID]))
	for peer := range t.bus.rooms[roomID] {
		if peer != t {
			peers = append(peers, peer)
		}
	}
	t.bus.mu.Unlock()

	for _, peer := range peers {
		peer.deliver(msg)
	}
	return nil
}

func (t *BusTransport) deliver(msg protocol.Message) {
	t.mu.Lock()
	h, connected := t.handler, t.connected
	t.mu.Unlock()
	if connected && h != nil {
		h(msg)
	}
}

func (t *BusTransport) Disconnect() {
	t.mu.Lock()
	roomID := t.roomID
	t.connected = false
	t.handler = nil
	t.mu.Unlock()

	t.bus.mu.Lock()
	defer t.bus.mu.Unlock()
	if room, ok := t.bus.rooms[roomID]; ok {
		delete(room, t)
		if len(room) == 0 {
			delete(t.bus.rooms, roomID)
		}
	}
}
