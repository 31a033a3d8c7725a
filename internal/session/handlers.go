package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cubehall/draftroom/game"
	"github.com/cubehall/draftroom/internal/draft"
	"github.com/cubehall/draftroom/internal/lobby"
	"github.com/cubehall/draftroom/internal/protocol"
	"github.com/cubehall/draftroom/internal/transport"
)

// All functions in this file run on the actor goroutine.

func (s *Session) createRoom(ctx context.Context, opts RoomOptions) createResult {
	if s.phase != PhaseSetup {
		return createResult{err: ErrBadPhase}
	}
	tr, err := s.cfg.Transports(opts.Mode)
	if err != nil {
		return createResult{err: err}
	}
	roomID := uuid.NewString()
	if err := tr.Connect(ctx, roomID, s.onMessage); err != nil {
		return createResult{err: err}
	}

	s.tr = tr
	s.mode = opts.Mode
	s.roomID = roomID
	s.isHost = true
	s.roster = lobby.NewRoster(s.clientID, s.cfg.Name,
		lobby.MaxPlayersFor(opts.CardCount), opts.CubeSource, opts.BaseTimer)
	s.setPhase(PhaseLobby)

	s.log.Infow("room created", "room", roomID, "mode", opts.Mode, "maxPlayers", s.roster.MaxPlayers)
	return createResult{invite: Invite{RoomID: roomID, Mode: opts.Mode}}
}

func (s *Session) beginJoin(ctx context.Context, invite Invite, reply chan error) error {
	if s.phase != PhaseSetup || s.join != nil {
		return ErrBadPhase
	}
	tr, err := s.cfg.Transports(invite.Mode)
	if err != nil {
		return err
	}
	if err := tr.Connect(ctx, invite.RoomID, s.onMessage); err != nil {
		return fmt.Errorf("%w: %v", ErrRoomUnreachable, err)
	}

	s.tr = tr
	s.mode = invite.Mode
	s.roomID = invite.RoomID
	s.isHost = false

	// The first JOIN can race the host attaching its listener; keep resending
	// until the roster shows up or the deadline passes.
	s.join = &joinAttempt{
		ticker:  time.NewTicker(s.cfg.JoinRetryInterval),
		timeout: time.NewTimer(s.cfg.JoinTimeout),
		reply:   reply,
	}
	s.resendJoin()
	return nil
}

func (s *Session) resendJoin() {
	if s.tr == nil {
		return
	}
	msg := protocol.MustEncode(protocol.Join{ClientID: s.clientID, Name: s.cfg.Name})
	if err := s.tr.Send(msg); err != nil {
		s.log.Debugw("join send failed", "room", s.roomID, "error", err.Error())
	}
}

func (s *Session) completeJoin() {
	if s.join == nil {
		return
	}
	s.stopJoinTimers()
	s.join.reply <- nil
	s.join = nil
}

func (s *Session) failJoin(err error) {
	if s.join == nil {
		return
	}
	s.stopJoinTimers()
	s.join.reply <- err
	s.join = nil
	s.releaseTransport()
	s.roomID = ""
	s.roster = nil
	s.setPhase(PhaseSetup)
}

func (s *Session) stopJoinTimers() {
	s.join.ticker.Stop()
	s.join.timeout.Stop()
}

func (s *Session) addBot() error {
	if !s.isHost {
		return ErrNotHost
	}
	if s.phase != PhaseLobby {
		return ErrBadPhase
	}
	bots := len(s.roster.Players) - s.roster.HumanCount()
	if !s.roster.AddBot(fmt.Sprintf("Bot %d", bots+1)) {
		return ErrRoomFull
	}
	s.broadcastRoster()
	return nil
}

func (s *Session) startDraft(cards []draft.Card, opts game.Options) error {
	if !s.isHost {
		return ErrNotHost
	}
	if s.phase != PhaseLobby {
		return ErrBadPhase
	}

	seats := len(s.roster.Players)
	shuffled := make([]draft.Card, len(cards))
	copy(shuffled, cards)
	draft.Shuffle(s.rng, shuffled)
	packs, err := draft.GeneratePacks(shuffled, seats, opts.PacksPerSeat, opts.PackSize)
	if err != nil {
		return err
	}

	players := make([]draft.Player, seats)
	for i, p := range s.roster.Players {
		p.Pool = []draft.Card{}
		p.HasPicked = false
		players[i] = p
	}
	baseTimer := s.roster.BaseTimer
	if baseTimer == 0 {
		baseTimer = opts.BaseTimer
	}

	s.opts = opts
	s.state = draft.NewState(players, packs, opts.PackSize, baseTimer)
	s.setPhase(PhaseDraft)
	s.broadcast(protocol.StartGame{State: *s.state})
	s.log.Infow("draft started", "room", s.roomID, "seats", seats,
		"packs", opts.PacksPerSeat, "packSize", opts.PackSize)
	return nil
}

func (s *Session) pick(cardID string) error {
	if s.phase != PhaseDraft || s.state == nil {
		return ErrBadPhase
	}
	seat, ok := s.state.SeatByClientID(s.clientID)
	if !ok {
		return ErrNoSeat
	}

	if s.isHost {
		s.engine.SubmitPick(s.state, seat, cardID)
		s.engine.Advance(s.state)
		s.broadcast(protocol.StateUpdate{State: *s.state})
		s.maybeRecap()
		return nil
	}

	if s.tr == nil {
		return transport.ErrUnavailable
	}
	// Optimistic: flip the flag for instant feedback, never touch the pool.
	// The next host broadcast overwrites this replica wholesale either way.
	s.state.Players[seat].HasPicked = true
	return s.tr.Send(protocol.MustEncode(protocol.PickCard{ClientID: s.clientID, CardID: cardID}))
}

func (s *Session) leave() {
	if s.join != nil {
		s.stopJoinTimers()
		s.join.reply <- ErrRoomUnreachable
		s.join = nil
	}
	if s.tr != nil {
		_ = s.tr.Send(protocol.MustEncode(protocol.Leave{ClientID: s.clientID}))
	}
	s.releaseTransport()
	s.roomID = ""
	s.mode = ""
	s.isHost = false
	s.roster = nil
	s.state = nil
	s.setPhase(PhaseSetup)
}

func (s *Session) switchMode(ctx context.Context, mode Mode) error {
	if s.roomID == "" {
		return ErrBadPhase
	}
	tr, err := s.cfg.Transports(mode)
	if err != nil {
		return err
	}
	s.releaseTransport()
	if err := tr.Connect(ctx, s.roomID, s.onMessage); err != nil {
		return fmt.Errorf("%w: %v", ErrRoomUnreachable, err)
	}
	s.tr = tr
	s.mode = mode

	// The room is provisioned anew under the same id; the host seeds it by
	// rebroadcasting whatever it currently believes.
	if s.isHost {
		switch s.phase {
		case PhaseLobby:
			s.broadcastRoster()
		case PhaseDraft, PhaseRecap:
			s.broadcast(protocol.StateUpdate{State: *s.state})
		}
	}
	s.log.Infow("transport switched", "room", s.roomID, "mode", mode)
	return nil
}

func (s *Session) teardown() {
	s.releaseTransport()
}

func (s *Session) releaseTransport() {
	if s.tr != nil {
		s.tr.Disconnect()
		s.tr = nil
	}
}

// onMessage runs on the transport's goroutine and only forwards into the
// actor inbox.
func (s *Session) onMessage(m protocol.Message) {
	s.post(inboundMsg{m: m})
}

func (s *Session) handleMessage(m protocol.Message) {
	payload, err := protocol.Decode(m)
	if err != nil {
		s.log.Debugw("ignoring undecodable message", "type", m.Type, "error", err.Error())
		return
	}

	switch p := payload.(type) {
	case protocol.Join:
		s.handleJoin(p)
	case protocol.PickCard:
		s.handlePickCard(p)
	case protocol.LobbyUpdate:
		s.applyLobbyUpdate(p)
	case protocol.StartGame:
		s.applyState(p.State)
	case protocol.StateUpdate:
		s.applyState(p.State)
	case protocol.Leave:
		s.handleLeave(p.ClientID)
	case protocol.PlayerLeft:
		s.notify(EventNotice, fmt.Sprintf("%s left the room", p.Name))
	}
}

func (s *Session) handleJoin(p protocol.Join) {
	if !s.isHost || s.phase != PhaseLobby || p.ClientID == s.clientID {
		return
	}
	if added := s.roster.Add(p.ClientID, p.Name); added {
		s.log.Infow("player joined", "room", s.roomID, "name", p.Name)
	}
	// Broadcast even when nothing changed: a duplicate JOIN means the guest
	// has not seen the roster yet, and a rejected JOIN learns its answer from
	// a roster that does not include it.
	s.broadcastRoster()
}

func (s *Session) handlePickCard(p protocol.PickCard) {
	if !s.isHost || s.phase != PhaseDraft || s.state == nil {
		return
	}
	seat, ok := s.state.SeatByClientID(p.ClientID)
	if !ok {
		return
	}
	s.engine.SubmitPick(s.state, seat, p.CardID)
	s.engine.Advance(s.state)
	s.broadcast(protocol.StateUpdate{State: *s.state})
	s.maybeRecap()
}

func (s *Session) applyLobbyUpdate(p protocol.LobbyUpdate) {
	// Replicas are replaced wholesale, never merged. Mid-draft the roster is
	// no longer the live document, so stale lobby snapshots are dropped.
	if s.phase == PhaseDraft || s.phase == PhaseRecap {
		return
	}
	s.roster = &lobby.Roster{
		Players:    p.Players,
		HostID:     p.HostID,
		MaxPlayers: p.MaxPlayers,
		CubeSource: p.CubeSource,
		BaseTimer:  p.BaseTimer,
	}
	if s.join != nil {
		if s.roster.Contains(s.clientID) {
			s.completeJoin()
			s.setPhase(PhaseLobby)
		} else if s.roster.IsFull() {
			// The host answered, and the answer is a roster without us.
			s.failJoin(ErrRoomFull)
			return
		}
	}
	if s.phase == PhaseLobby {
		s.notifyRosterChange()
	}
}

func (s *Session) applyState(st draft.State) {
	s.state = cloneJSON(&st)
	if s.join != nil {
		if _, ok := s.state.SeatByClientID(s.clientID); ok {
			s.completeJoin()
		}
	}
	if s.state.IsFinished {
		s.setPhase(PhaseRecap)
	} else {
		s.setPhase(PhaseDraft)
	}
}

func (s *Session) handleLeave(clientID string) {
	if clientID == "" || clientID == s.clientID {
		return
	}
	switch s.phase {
	case PhaseLobby:
		s.handleLobbyLeave(clientID)
	case PhaseDraft, PhaseRecap:
		s.handleDraftLeave(clientID)
	}
}

func (s *Session) handleLobbyLeave(clientID string) {
	if s.roster == nil {
		return
	}
	name := playerName(s.roster.Players, clientID)
	wasHost := clientID == s.roster.HostID
	if !s.roster.Remove(clientID) {
		return
	}
	if wasHost {
		s.migrateHost(s.roster.Players)
	}
	if s.isHost {
		if s.roster.HumanCount() == 0 {
			s.abandonRoom()
			return
		}
		s.broadcastRoster()
		s.broadcast(protocol.PlayerLeft{Name: name})
	}
}

func (s *Session) handleDraftLeave(clientID string) {
	if s.state == nil {
		return
	}
	seat, ok := s.state.SeatByClientID(clientID)
	if !ok {
		return
	}
	// Convert the seat in place: the pool and pack position survive and the
	// draft continues without renumbering.
	player := &s.state.Players[seat]
	name := player.Name
	player.IsBot = true
	player.ClientID = ""
	player.Name = name + " (bot)"

	wasHost := s.roster != nil && clientID == s.roster.HostID
	if wasHost {
		s.migrateHost(s.state.Players)
	}
	if s.isHost {
		if s.state.HumanCount() == 0 {
			s.abandonRoom()
			return
		}
		// The departed seat may have been the last one holding the tick up.
		s.engine.Advance(s.state)
		s.broadcast(protocol.StateUpdate{State: *s.state})
		s.broadcast(protocol.PlayerLeft{Name: name})
		s.maybeRecap()
	}
}

// migrateHost runs on every replica after a host departure. The successor is
// a pure function of the shared roster, so all replicas agree without an
// election; only the successor flips its own role.
func (s *Session) migrateHost(players []draft.Player) {
	next, ok := lobby.NextHost(players)
	if s.roster != nil {
		if ok {
			s.roster.HostID = next
		} else {
			s.roster.HostID = ""
		}
	}
	if !ok || next != s.clientID {
		return
	}
	s.isHost = true
	for i := range players {
		if players[i].ClientID == s.clientID {
			players[i].Name += " (host)"
			break
		}
	}
	s.log.Infow("promoted to host", "room", s.roomID)
	s.notify(EventNotice, "you are now the host")
}

func (s *Session) abandonRoom() {
	s.log.Infow("room abandoned, releasing transport", "room", s.roomID)
	s.releaseTransport()
	s.roomID = ""
	s.roster = nil
	s.state = nil
	s.isHost = false
	s.setPhase(PhaseSetup)
}

func (s *Session) maybeRecap() {
	if s.state != nil && s.state.IsFinished {
		s.setPhase(PhaseRecap)
	}
}

func (s *Session) broadcastRoster() {
	s.broadcast(protocol.LobbyUpdate{
		Players:    s.roster.Players,
		HostID:     s.roster.HostID,
		MaxPlayers: s.roster.MaxPlayers,
		CubeSource: s.roster.CubeSource,
		BaseTimer:  s.roster.BaseTimer,
	})
}

func (s *Session) broadcast(p protocol.Payload) {
	if s.tr == nil {
		s.notify(EventError, transport.ErrUnavailable.Error())
		return
	}
	if err := s.tr.Send(protocol.MustEncode(p)); err != nil {
		s.log.Errorw("broadcast failed", "room", s.roomID, "error", err.Error())
		s.notify(EventError, err.Error())
	}
}

func (s *Session) notifyRosterChange() {
	s.notify(EventNotice, fmt.Sprintf("%d/%d seats filled", len(s.roster.Players), s.roster.MaxPlayers))
}

func playerName(players []draft.Player, clientID string) string {
	for i := range players {
		if players[i].ClientID == clientID {
			return players[i].Name
		}
	}
	return "unknown"
}
