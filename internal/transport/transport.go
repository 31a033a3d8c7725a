// Package transport carries protocol messages between the participants of a
// room. Two interchangeable implementations exist: an in-process broadcast
// bus for participants on the same device, and a websocket client speaking to
// a relay that keeps a shared append-only message log for the room.
package transport

import (
	"context"
	"errors"

	"github.com/cubehall/draftroom/internal/protocol"
)

// ErrUnavailable reports a send on a transport that is not connected (or was
// never provisioned). Callers surface it instead of silently dropping work.
var ErrUnavailable = errors.New("transport: unavailable")

// Handler receives every message visible to this participant. Delivery is
// ordered per sender; duplicates are possible on transports that replay.
type Handler func(msg protocol.Message)

// Transport is a duplex message channel scoped to one room. A transport
// never echoes a participant's own sends back to it.
type Transport interface {
	Connect(ctx context.Context, roomID string, h Handler) error
	Send(msg protocol.Message) error
	Disconnect()
}
