package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubehall/draftroom/game"
	"github.com/cubehall/draftroom/internal/draft"
	"github.com/cubehall/draftroom/internal/protocol"
	"github.com/cubehall/draftroom/internal/transport"
)

// deadTransport refuses every connection attempt.
type deadTransport struct{}

func (deadTransport) Connect(context.Context, string, transport.Handler) error {
	return transport.ErrUnavailable
}
func (deadTransport) Send(protocol.Message) error { return transport.ErrUnavailable }
func (deadTransport) Disconnect()                 {}

func newBusSession(t *testing.T, bus *transport.Bus, name string, seed int64) *Session {
	t.Helper()
	s := New(Config{
		Name:     name,
		ClientID: name,
		Transports: func(Mode) (transport.Transport, error) {
			return bus.Transport(), nil
		},
		RNG:               rand.New(rand.NewSource(seed)),
		JoinRetryInterval: 10 * time.Millisecond,
		JoinTimeout:       time.Second,
	})
	t.Cleanup(s.Close)
	return s
}

func sessionCards(n int) []draft.Card {
	cards := make([]draft.Card, n)
	for i := range cards {
		cards[i] = draft.Card{ID: fmt.Sprintf("card-%03d", i), Name: fmt.Sprintf("Card %d", i)}
	}
	return cards
}

// drainDraft keeps every session picking the first card of its current pack
// until all of them reach the recap.
func drainDraft(t *testing.T, sessions ...*Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		done := true
		for _, s := range sessions {
			v := s.Snapshot()
			if v.Phase == PhaseRecap {
				continue
			}
			done = false
			if v.Phase != PhaseDraft || v.State == nil {
				continue
			}
			seat, ok := v.State.SeatByClientID(v.ClientID)
			if !ok || v.State.Players[seat].HasPicked {
				continue
			}
			pack := v.State.CurrentPack(seat)
			if len(pack) == 0 {
				continue
			}
			_ = s.Pick(pack[0].ID)
		}
		return done
	}, 5*time.Second, 5*time.Millisecond)
}

func waitPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().Phase == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for phase %s", want)
}

func TestCreateAndJoin(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest := newBusSession(t, bus, "bob", 2)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 90})
	require.NoError(t, err)
	require.NotEmpty(t, invite.RoomID)

	require.NoError(t, guest.JoinRoom(context.Background(), invite))

	hv := host.Snapshot()
	gv := guest.Snapshot()
	assert.Equal(t, PhaseLobby, hv.Phase)
	assert.Equal(t, PhaseLobby, gv.Phase)
	assert.True(t, hv.IsHost)
	assert.False(t, gv.IsHost)
	require.NotNil(t, gv.Roster)
	require.Len(t, gv.Roster.Players, 2)
	assert.Equal(t, "alice", gv.Roster.Players[0].Name)
	assert.Equal(t, "bob", gv.Roster.Players[1].Name)
	assert.Equal(t, host.ClientID(), gv.Roster.HostID)
}

func TestJoinTimesOutWithoutHost(t *testing.T) {
	bus := transport.NewBus()
	guest := New(Config{
		Name:     "bob",
		ClientID: "bob",
		Transports: func(Mode) (transport.Transport, error) {
			return bus.Transport(), nil
		},
		JoinRetryInterval: 10 * time.Millisecond,
		JoinTimeout:       100 * time.Millisecond,
	})
	t.Cleanup(guest.Close)

	err := guest.JoinRoom(context.Background(), Invite{RoomID: "nobody-home", Mode: ModeBus})
	assert.ErrorIs(t, err, ErrRoomUnreachable)
	assert.Equal(t, PhaseSetup, guest.Snapshot().Phase)
}

func TestJoinRejectedWhenFull(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	first := newBusSession(t, bus, "bob", 2)
	late := newBusSession(t, bus, "carol", 3)

	// 90 cards seats exactly two players.
	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 90})
	require.NoError(t, err)
	require.NoError(t, first.JoinRoom(context.Background(), invite))

	err = late.JoinRoom(context.Background(), invite)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, PhaseSetup, late.Snapshot().Phase)
}

func TestGuestCannotRunHostCommands(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest := newBusSession(t, bus, "bob", 2)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 135})
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(context.Background(), invite))

	assert.ErrorIs(t, guest.AddBot(), ErrNotHost)
	assert.ErrorIs(t, guest.StartDraft(sessionCards(18), game.Options{PacksPerSeat: 2, PackSize: 3, BaseTimer: 60}), ErrNotHost)
}

func TestAddBotFillsSeat(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest := newBusSession(t, bus, "bob", 2)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 135})
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(context.Background(), invite))
	require.NoError(t, host.AddBot())

	require.Eventually(t, func() bool {
		v := guest.Snapshot()
		return v.Roster != nil && len(v.Roster.Players) == 3
	}, 2*time.Second, 5*time.Millisecond)

	v := guest.Snapshot()
	assert.True(t, v.Roster.Players[2].IsBot)
	assert.ErrorIs(t, host.AddBot(), ErrRoomFull)
}

func TestDraftRunsToRecap(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest := newBusSession(t, bus, "bob", 2)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 90})
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(context.Background(), invite))

	opts := game.Options{PacksPerSeat: 2, PackSize: 3, BaseTimer: 60}
	require.NoError(t, host.StartDraft(sessionCards(12), opts))
	waitPhase(t, guest, PhaseDraft)

	drainDraft(t, host, guest)

	final := guest.Snapshot()
	require.NotNil(t, final.State)
	assert.True(t, final.State.IsFinished)

	seen := make(map[string]bool)
	for _, p := range final.State.Players {
		assert.Len(t, p.Pool, opts.PacksPerSeat*opts.PackSize, "seat %d pool", p.Seat)
		for _, c := range p.Pool {
			assert.False(t, seen[c.ID], "card %s drafted twice", c.ID)
			seen[c.ID] = true
		}
	}
	assert.Len(t, seen, 12, "every dealt card ends up in exactly one pool")
}

func TestHostMigrationMidDraft(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest1 := newBusSession(t, bus, "bob", 2)
	guest2 := newBusSession(t, bus, "carol", 3)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 135})
	require.NoError(t, err)
	require.NoError(t, guest1.JoinRoom(context.Background(), invite))
	require.NoError(t, guest2.JoinRoom(context.Background(), invite))

	opts := game.Options{PacksPerSeat: 2, PackSize: 3, BaseTimer: 60}
	require.NoError(t, host.StartDraft(sessionCards(18), opts))
	waitPhase(t, guest1, PhaseDraft)
	waitPhase(t, guest2, PhaseDraft)

	host.Leave()
	assert.Equal(t, PhaseSetup, host.Snapshot().Phase)

	// The earliest remaining human seat inherits the room.
	require.Eventually(t, func() bool {
		return guest1.Snapshot().IsHost
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, guest2.Snapshot().IsHost)

	drainDraft(t, guest1, guest2)

	final := guest2.Snapshot()
	require.NotNil(t, final.State)
	assert.True(t, final.State.IsFinished)

	departed := final.State.Players[0]
	assert.True(t, departed.IsBot)
	assert.True(t, strings.HasSuffix(departed.Name, "(bot)"))

	// The converted seat drafted on; nothing was lost or duplicated.
	seen := make(map[string]bool)
	for _, p := range final.State.Players {
		assert.Len(t, p.Pool, opts.PacksPerSeat*opts.PackSize, "seat %d pool", p.Seat)
		for _, c := range p.Pool {
			assert.False(t, seen[c.ID], "card %s drafted twice", c.ID)
			seen[c.ID] = true
		}
	}
	assert.Len(t, seen, 18)
}

func TestLeaveFromLobbyRemovesSeat(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest := newBusSession(t, bus, "bob", 2)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 135})
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(context.Background(), invite))

	guest.Leave()
	assert.Equal(t, PhaseSetup, guest.Snapshot().Phase)

	require.Eventually(t, func() bool {
		v := host.Snapshot()
		return v.Roster != nil && len(v.Roster.Players) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseLobby, host.Snapshot().Phase)
}

func TestPickWithoutTransportLeavesReplicaClean(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)

	guest := New(Config{
		Name:     "bob",
		ClientID: "bob",
		Transports: func(mode Mode) (transport.Transport, error) {
			if mode == ModeRelay {
				return deadTransport{}, nil
			}
			return bus.Transport(), nil
		},
		RNG:               rand.New(rand.NewSource(2)),
		JoinRetryInterval: 10 * time.Millisecond,
		JoinTimeout:       time.Second,
	})
	t.Cleanup(guest.Close)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 90})
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(context.Background(), invite))
	require.NoError(t, host.StartDraft(sessionCards(12), game.Options{PacksPerSeat: 2, PackSize: 3, BaseTimer: 60}))
	waitPhase(t, guest, PhaseDraft)

	// The switch tears the old transport down and fails to connect the new
	// one, leaving the session stranded.
	require.ErrorIs(t, guest.SwitchMode(context.Background(), ModeRelay), ErrRoomUnreachable)

	v := guest.Snapshot()
	seat, ok := v.State.SeatByClientID("bob")
	require.True(t, ok)
	cardID := v.State.CurrentPack(seat)[0].ID

	assert.ErrorIs(t, guest.Pick(cardID), transport.ErrUnavailable)
	assert.False(t, guest.Snapshot().State.Players[seat].HasPicked,
		"a pick that never left the session must not look submitted")
}

func TestSwitchModeRebroadcastsRoster(t *testing.T) {
	bus := transport.NewBus()
	host := newBusSession(t, bus, "alice", 1)
	guest := newBusSession(t, bus, "bob", 2)

	invite, err := host.CreateRoom(context.Background(), RoomOptions{Mode: ModeBus, CardCount: 135})
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(context.Background(), invite))

	// Both ends land on a fresh transport under the same room id; the host
	// reseeds the room with its roster.
	require.NoError(t, guest.SwitchMode(context.Background(), ModeBus))
	require.NoError(t, host.SwitchMode(context.Background(), ModeBus))
	require.NoError(t, host.AddBot())

	require.Eventually(t, func() bool {
		v := guest.Snapshot()
		return v.Roster != nil && len(v.Roster.Players) == 3
	}, 2*time.Second, 5*time.Millisecond)
}
