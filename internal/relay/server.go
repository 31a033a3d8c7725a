// Package relay implements the shared message log reachable across the
// network. Each room keeps an append-only log of every message sent by any
// participant; connections receive the backlog on join and every later
// append, so delivery is at-least-once in append order.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/cubehall/draftroom/internal/logging"
	"github.com/cubehall/draftroom/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server fans room messages out to websocket participants. Rooms are
// provisioned on first connect; there is no explicit create step.
type Server struct {
	store Store

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	id string

	mu    sync.Mutex
	conns map[*roomConn]struct{}
}

type roomConn struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewServer(store Store) *Server {
	return &Server{
		store: store,
		rooms: make(map[string]*room),
	}
}

// Routes returns the relay's HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/rooms/{roomID}/ws", s.handleWS)
	return r
}

// lockRoom returns the room for id with its lock held, creating the room if
// needed. The room lock is acquired before the registry lock is released, so
// a concurrent last-peer drop cannot delete the room between lookup and
// registration: reap takes both locks and will see the new participant.
func (s *Server) lockRoom(id string) *room {
	s.mu.Lock()
	rm := s.rooms[id]
	if rm == nil {
		rm = &room{id: id, conns: make(map[*roomConn]struct{})}
		s.rooms[id] = rm
	}
	rm.mu.Lock()
	s.mu.Unlock()
	return rm
}

// reap deletes the room from the registry once no participants remain. Lock
// order is registry before room, matching lockRoom.
func (s *Server) reap(rm *room) {
	s.mu.Lock()
	rm.mu.Lock()
	if len(rm.conns) == 0 && s.rooms[rm.id] == rm {
		delete(s.rooms, rm.id)
	}
	rm.mu.Unlock()
	s.mu.Unlock()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLogger()
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorw("websocket upgrade failed", "room", roomID, "error", err.Error())
		return
	}

	rm := s.lockRoom(roomID)

	// Queue the whole backlog before registering so nothing broadcast during
	// the replay can be ordered ahead of it. The send buffer is sized to take
	// the full backlog without blocking under the room lock.
	backlog, err := s.store.Backlog(r.Context(), roomID)
	if err != nil {
		rm.mu.Unlock()
		logger.Errorw("backlog read failed", "room", roomID, "error", err.Error())
		_ = ws.Close()
		s.reap(rm)
		return
	}
	c := &roomConn{ws: ws, send: make(chan []byte, len(backlog)+sendBufSize)}
	for _, payload := range backlog {
		c.send <- payload
	}
	rm.conns[c] = struct{}{}
	conns := len(rm.conns)
	rm.mu.Unlock()

	logger.Debugw("participant connected", "room", roomID, "conns", conns)

	go c.writePump()
	s.readPump(rm, c)
}

// readPump appends every valid inbound frame to the room log and fans it out
// to the other participants.
func (s *Server) readPump(rm *room, c *roomConn) {
	logger := logging.GetLogger()
	defer s.drop(rm, c)

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugw("participant read ended", "room", rm.id, "error", err.Error())
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Type == "" {
			logger.Debugw("dropping malformed frame", "room", rm.id)
			continue
		}
		if err := s.store.Append(context.Background(), rm.id, payload); err != nil {
			logger.Errorw("append failed", "room", rm.id, "error", err.Error())
			continue
		}
		s.fanout(rm, c, payload)
	}
}

func (s *Server) fanout(rm *room, from *roomConn, payload []byte) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for peer := range rm.conns {
		if peer == from {
			continue
		}
		select {
		case peer.send <- payload:
		default:
			// Slow participant: drop it rather than stall the room. It can
			// reconnect and replay the backlog.
			delete(rm.conns, peer)
			close(peer.send)
		}
	}
}

func (s *Server) drop(rm *room, c *roomConn) {
	rm.mu.Lock()
	if _, ok := rm.conns[c]; ok {
		delete(rm.conns, c)
		close(c.send)
	}
	rm.mu.Unlock()
	_ = c.ws.Close()
	s.reap(rm)
}

func (c *roomConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
