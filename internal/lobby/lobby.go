// Package lobby manages the pre-draft seat roster. The roster is owned by the
// host; guests hold replicas replaced wholesale by every LobbyUpdate.
package lobby

import (
	"github.com/cubehall/draftroom/game"
	"github.com/cubehall/draftroom/internal/draft"
)

const (
	// MaxSeats caps any room regardless of cube size.
	MaxSeats = 16
	// CardsPerSeat is how many cards the catalog must supply per seat.
	CardsPerSeat = 45
)

// MaxPlayersFor derives room capacity from catalog size: one seat per 45
// cards, capped at 16.
func MaxPlayersFor(cardCount int) int {
	n := cardCount / CardsPerSeat
	if n > MaxSeats {
		return MaxSeats
	}
	return n
}

// Roster is the pre-draft seat list. Seats have no pool or per-tick pick
// semantics yet; those appear when the draft starts.
type Roster struct {
	Players    []draft.Player
	HostID     string
	MaxPlayers int
	CubeSource *game.CubeSource
	BaseTimer  int
}

// NewRoster seats the host in a fresh room.
func NewRoster(hostClientID, hostName string, maxPlayers int, src *game.CubeSource, baseTimer int) *Roster {
	return &Roster{
		Players: []draft.Player{
			{Seat: 0, Name: hostName, ClientID: hostClientID},
		},
		HostID:     hostClientID,
		MaxPlayers: maxPlayers,
		CubeSource: src,
		BaseTimer:  baseTimer,
	}
}

// Add seats a joining human. A full roster or an already-seated client leaves
// the roster unchanged; the host re-broadcasts it either way, which is how a
// rejected guest learns its fate.
func (r *Roster) Add(clientID, name string) bool {
	if clientID == "" || r.Contains(clientID) || r.IsFull() {
		return false
	}
	r.Players = append(r.Players, draft.Player{
		Seat:     len(r.Players),
		Name:     name,
		ClientID: clientID,
	})
	return true
}

// AddBot seats a bot, subject to the same capacity.
func (r *Roster) AddBot(name string) bool {
	if r.IsFull() {
		return false
	}
	r.Players = append(r.Players, draft.Player{
		Seat:  len(r.Players),
		Name:  name,
		IsBot: true,
	})
	return true
}

// Remove frees the seat of a departing client entirely; remaining seats are
// renumbered. Mid-draft departures are handled differently (seat conversion,
// not removal) and never go through here.
func (r *Roster) Remove(clientID string) bool {
	for i := range r.Players {
		if r.Players[i].ClientID == clientID && clientID != "" {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			for j := range r.Players {
				r.Players[j].Seat = j
			}
			return true
		}
	}
	return false
}

func (r *Roster) Contains(clientID string) bool {
	if clientID == "" {
		return false
	}
	for i := range r.Players {
		if r.Players[i].ClientID == clientID {
			return true
		}
	}
	return false
}

func (r *Roster) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// HumanCount reports seats occupied by connected clients.
func (r *Roster) HumanCount() int {
	var n int
	for i := range r.Players {
		if !r.Players[i].IsBot {
			n++
		}
	}
	return n
}

// NextHost names the deterministic successor: the human in the earliest
// remaining seat. Every replica computes the same answer from the same
// roster, so migration needs no election round.
func NextHost(players []draft.Player) (string, bool) {
	for i := range players {
		if !players[i].IsBot && players[i].ClientID != "" {
			return players[i].ClientID, true
		}
	}
	return "", false
}
