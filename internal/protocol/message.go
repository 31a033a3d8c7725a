// Package protocol defines the wire messages exchanged between the host and
// guests of a draft room. Every message is an envelope carrying a type tag
// and a JSON payload; payloads form a closed set so receivers can match
// exhaustively.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cubehall/draftroom/game"
	"github.com/cubehall/draftroom/internal/draft"
)

type Type string

const (
	TypeJoin        Type = "join"
	TypeLobbyUpdate Type = "lobby_update"
	TypeStartGame   Type = "start_game"
	TypePickCard    Type = "pick_card"
	TypeStateUpdate Type = "state_update"
	TypeLeave       Type = "leave"
	TypePlayerLeft  Type = "player_left"
)

var ErrUnknownType = errors.New("protocol: unknown message type")

// Message is the transport-agnostic envelope.
type Message struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload is the closed sum of protocol message bodies.
type Payload interface{ isPayload() }

// Join is a guest's request for a seat, resent until a LobbyUpdate that
// includes the guest is observed.
type Join struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// LobbyUpdate is the host's full roster snapshot, idempotent to re-apply.
type LobbyUpdate struct {
	Players    []draft.Player   `json:"players"`
	HostID     string           `json:"hostId"`
	MaxPlayers int              `json:"maxPlayers"`
	CubeSource *game.CubeSource `json:"cubeSource,omitempty"`
	BaseTimer  int              `json:"baseTimer,omitempty"`
}

// StartGame moves receivers into the draft phase with the initial snapshot.
type StartGame struct {
	State draft.State `json:"state"`
}

// PickCard is a guest's pick intent; the host ignores stale ones.
type PickCard struct {
	ClientID string `json:"clientId"`
	CardID   string `json:"cardId"`
}

// StateUpdate replaces the receiver's draft replica wholesale.
type StateUpdate struct {
	State draft.State `json:"state"`
}

// Leave announces a departing client.
type Leave struct {
	ClientID string `json:"clientId"`
}

// PlayerLeft is a display-only notice.
type PlayerLeft struct {
	Name string `json:"name"`
}

func (Join) isPayload()        {}
func (LobbyUpdate) isPayload() {}
func (StartGame) isPayload()   {}
func (PickCard) isPayload()    {}
func (StateUpdate) isPayload() {}
func (Leave) isPayload()       {}
func (PlayerLeft) isPayload()  {}

// Encode wraps a payload in its tagged envelope.
func Encode(p Payload) (Message, error) {
	var t Type
	switch p.(type) {
	case Join:
		t = TypeJoin
	case LobbyUpdate:
		t = TypeLobbyUpdate
	case StartGame:
		t = TypeStartGame
	case PickCard:
		t = TypePickCard
	case StateUpdate:
		t = TypeStateUpdate
	case Leave:
		t = TypeLeave
	case PlayerLeft:
		t = TypePlayerLeft
	default:
		return Message{}, fmt.Errorf("protocol: cannot encode %T", p)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Data: data}, nil
}

// MustEncode is Encode for payloads built from in-memory state, where a
// marshal failure is a bug.
func MustEncode(p Payload) Message {
	m, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return m
}

// Decode unwraps an envelope into its typed payload. The switch is
// exhaustive over the protocol; anything else is ErrUnknownType.
func Decode(m Message) (Payload, error) {
	switch m.Type {
	case TypeJoin:
		var p Join
		return p, json.Unmarshal(m.Data, &p)
	case TypeLobbyUpdate:
		var p LobbyUpdate
		return p, json.Unmarshal(m.Data, &p)
	case TypeStartGame:
		var p StartGame
		return p, json.Unmarshal(m.Data, &p)
	case TypePickCard:
		var p PickCard
		return p, json.Unmarshal(m.Data, &p)
	case TypeStateUpdate:
		var p StateUpdate
		return p, json.Unmarshal(m.Data, &p)
	case TypeLeave:
		var p Leave
		return p, json.Unmarshal(m.Data, &p)
	case TypePlayerLeft:
		var p PlayerLeft
		return p, json.Unmarshal(m.Data, &p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}
