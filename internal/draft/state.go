package draft

import "fmt"

type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Flip returns the opposite passing direction.
func (d Direction) Flip() Direction {
	if d == DirectionLeft {
		return DirectionRight
	}
	return DirectionLeft
}

// State is the canonical draft snapshot. It is owned and mutated exclusively
// by the host process; every other participant holds a replica that is
// replaced wholesale on each broadcast.
//
// Packs is indexed [seat][slot]: a slot is not tied to one seat's pack
// forever, different seats' packs rotate through it every tick. Within a
// round each seat looks at slot CurrentPackIndex[seat] == Round-1 and only
// the slot contents change hands.
type State struct {
	Round            int        `json:"round"`
	PackSize         int        `json:"packSize"`
	Players          []Player   `json:"players"`
	Packs            [][][]Card `json:"packs"`
	CurrentPackIndex []int      `json:"currentPackIndex"`
	Direction        Direction  `json:"direction"`
	IsFinished       bool       `json:"isFinished"`
	IsActive         bool       `json:"isActive"`
	BaseTimer        int        `json:"baseTimer"`
}

// NewState builds the initial snapshot for a starting draft: round one,
// passing left, every seat on its first pack.
func NewState(players []Player, packs [][][]Card, packSize, baseTimer int) *State {
	if len(packs) != len(players) {
		panic(fmt.Sprintf("draft: %d players but packs for %d seats", len(players), len(packs)))
	}
	current := make([]int, len(players))
	return &State{
		Round:            1,
		PackSize:         packSize,
		Players:          players,
		Packs:            packs,
		CurrentPackIndex: current,
		Direction:        DirectionLeft,
		IsActive:         true,
		BaseTimer:        baseTimer,
	}
}

// TotalRounds reports how many packs each seat will open over the draft.
func (st *State) TotalRounds() int {
	if len(st.Packs) == 0 {
		return 0
	}
	return len(st.Packs[0])
}

// CurrentPack returns the pack the seat is currently looking at.
func (st *State) CurrentPack(seat int) []Card {
	slot := st.CurrentPackIndex[seat]
	if slot < 0 || slot >= len(st.Packs[seat]) {
		panic(fmt.Sprintf("draft: seat %d pack slot %d out of range", seat, slot))
	}
	return st.Packs[seat][slot]
}

// SeatByClientID finds the seat occupied by the given network identity.
func (st *State) SeatByClientID(clientID string) (int, bool) {
	if clientID == "" {
		return 0, false
	}
	for i := range st.Players {
		if st.Players[i].ClientID == clientID {
			return i, true
		}
	}
	return 0, false
}

// HumanCount reports how many seats are still occupied by connected humans.
func (st *State) HumanCount() int {
	var n int
	for i := range st.Players {
		if !st.Players[i].IsBot {
			n++
		}
	}
	return n
}
