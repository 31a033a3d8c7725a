package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cubehall/draftroom/internal/logging"
	"github.com/cubehall/draftroom/internal/protocol"
)

const (
	// Time allowed to write a message to the relay.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong from the relay.
	pongWait = 60 * time.Second
	// Ping cadence; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufSize = 64
)

// RelayTransport connects to a relayd room over a websocket. The relay
// appends every message to the room's shared log and fans it out to the
// other participants, replaying the backlog to late joiners.
type RelayTransport struct {
	baseURL string
	dialer  *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	send chan protocol.Message
	done chan struct{}
}

var _ Transport = (*RelayTransport)(nil)

// NewRelayTransport builds a transport against a relay base URL such as
// "ws://127.0.0.1:7780".
func NewRelayTransport(baseURL string) *RelayTransport {
	return &RelayTransport{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
	}
}

func (t *RelayTransport) Connect(ctx context.Context, roomID string, h Handler) error {
	url := fmt.Sprintf("%s/rooms/%s/ws", t.baseURL, roomID)
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrUnavailable, url, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.send = make(chan protocol.Message, sendBufSize)
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.readPump(conn, h)
	go t.writePump(conn, t.send, t.done)
	return nil
}

func (t *RelayTransport) Send(msg protocol.Message) error {
	t.mu.Lock()
	conn, send, done := t.conn, t.send, t.done
	t.mu.Unlock()
	if conn == nil {
		return ErrUnavailable
	}
	select {
	case send <- msg:
		return nil
	case <-done:
		return ErrUnavailable
	}
}

func (t *RelayTransport) Disconnect() {
	t.mu.Lock()
	conn, done := t.conn, t.done
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return
	}
	close(done)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

func (t *RelayTransport) readPump(conn *websocket.Conn, h Handler) {
	logger := logging.GetLogger()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugw("relay read ended", "error", err.Error())
			}
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			return
		}
		h(msg)
	}
}

func (t *RelayTransport) writePump(conn *websocket.Conn, send <-chan protocol.Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				t.mu.Lock()
				if t.conn == conn {
					t.conn = nil
				}
				t.mu.Unlock()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
