package draft

import (
	"fmt"
	"math/rand"
	"time"
)

// Engine advances the draft one tick at a time. It runs only on the host;
// guests never mutate their replicas directly. The zero source of randomness
// feeds bot picks only, so a seeded Engine replays identically.
type Engine struct {
	rng *rand.Rand
}

// NewEngine returns an engine using the given randomness source for bot
// picks. A nil source gets a time-seeded one.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// SubmitPick moves the identified card from the seat's current pack into the
// seat's pool and marks the seat as having picked. A seat that already picked
// this tick, or a card no longer in the pack, is a stale or duplicate request
// and is silently ignored; the return value reports whether anything changed.
func (e *Engine) SubmitPick(st *State, seat int, cardID string) bool {
	if st.IsFinished || !st.IsActive {
		return false
	}
	if seat < 0 || seat >= len(st.Players) {
		return false
	}
	// One departed card per seat per tick; replayed or racing intents for a
	// second card must not shrink the pack again.
	if st.Players[seat].HasPicked {
		return false
	}
	pack := st.CurrentPack(seat)
	for i := range pack {
		if pack[i].ID == cardID {
			player := &st.Players[seat]
			player.Pool = append(player.Pool, pack[i])
			player.HasPicked = true
			st.Packs[seat][st.CurrentPackIndex[seat]] = append(pack[:i], pack[i+1:]...)
			return true
		}
	}
	return false
}

// Advance runs one tick if every human has picked: bots are resolved, the
// per-tick picked flags reset, and the packs either rotate or the draft moves
// to the next round. If any human is still to pick the state is left
// untouched; callers broadcast the state either way so that lagging guests
// re-synchronize.
func (e *Engine) Advance(st *State) {
	if st.IsFinished || !st.IsActive {
		return
	}
	for i := range st.Players {
		if !st.Players[i].IsBot && !st.Players[i].HasPicked {
			return
		}
	}

	e.resolveBots(st)

	for i := range st.Players {
		st.Players[i].HasPicked = false
	}

	assertUniformPackSizes(st)

	// Seat 0 stands in for the whole round: every seat's current pack loses
	// exactly one card per tick, so all are empty at the same tick boundary.
	if len(st.CurrentPack(0)) > 0 {
		rotate(st)
		return
	}

	if st.Round >= st.TotalRounds() {
		st.IsFinished = true
		st.IsActive = false
		return
	}
	st.Round++
	st.Direction = st.Direction.Flip()
	for i := range st.CurrentPackIndex {
		st.CurrentPackIndex[i] = st.Round - 1
	}
}

// resolveBots picks a uniformly random card for every bot seat that has not
// picked this tick. A bot facing an empty pack has nothing to do and counts
// as done.
func (e *Engine) resolveBots(st *State) {
	for i := range st.Players {
		player := &st.Players[i]
		if !player.IsBot || player.HasPicked {
			continue
		}
		pack := st.CurrentPack(i)
		if len(pack) == 0 {
			continue
		}
		e.SubmitPick(st, i, pack[e.rng.Intn(len(pack))].ID)
	}
}

// rotate passes every seat's current pack to its neighbor in the round's
// direction. The permutation is computed from a snapshot of all pack
// references; writing sequentially in place would hand some seats a pack
// that already moved this tick.
func rotate(st *State) {
	n := len(st.Players)
	snapshot := make([][]Card, n)
	for i := 0; i < n; i++ {
		snapshot[i] = st.Packs[i][st.CurrentPackIndex[i]]
	}
	for i := 0; i < n; i++ {
		src := (i - 1 + n) % n
		if st.Direction == DirectionRight {
			src = (i + 1) % n
		}
		st.Packs[i][st.CurrentPackIndex[i]] = snapshot[src]
	}
}

// assertUniformPackSizes enforces the tick-boundary invariant that all seats'
// current packs hold the same number of cards. A violation means pack
// generation or an earlier tick went wrong, which is a bug rather than a
// recoverable condition.
func assertUniformPackSizes(st *State) {
	if len(st.Players) == 0 {
		panic("draft: state has no seats")
	}
	want := len(st.CurrentPack(0))
	for i := 1; i < len(st.Players); i++ {
		if got := len(st.CurrentPack(i)); got != want {
			panic(fmt.Sprintf("draft: seat %d pack has %d cards, seat 0 has %d", i, got, want))
		}
	}
}
