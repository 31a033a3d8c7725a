// Package session orchestrates one participant's lifecycle in a draft room:
// phase transitions, host/guest role assignment, join retries, disconnects
// and host migration. All session state is owned by a single actor goroutine;
// public methods and transport callbacks post messages into its inbox.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cubehall/draftroom/game"
	"github.com/cubehall/draftroom/internal/draft"
	"github.com/cubehall/draftroom/internal/lobby"
	"github.com/cubehall/draftroom/internal/logging"
	"github.com/cubehall/draftroom/internal/protocol"
	"github.com/cubehall/draftroom/internal/transport"
)

type Phase string

const (
	PhaseSetup Phase = "setup"
	PhaseLobby Phase = "lobby"
	PhaseDraft Phase = "draft"
	PhaseRecap Phase = "recap"
)

// Mode tags which transport flavor a room lives on.
type Mode string

const (
	ModeBus   Mode = "bus"
	ModeRelay Mode = "relay"
)

var (
	ErrRoomUnreachable = errors.New("session: room unreachable")
	ErrRoomFull        = errors.New("session: room is full")
	ErrNotHost         = errors.New("session: not the host")
	ErrNoSeat          = errors.New("session: no seat in this draft")
	ErrBadPhase        = errors.New("session: not valid in this phase")
)

const (
	defaultJoinRetry   = 2 * time.Second
	defaultJoinTimeout = 15 * time.Second
)

// TransportFactory builds a transport endpoint for the given mode.
type TransportFactory func(mode Mode) (transport.Transport, error)

// EventKind classifies notifications surfaced to the embedding UI.
type EventKind string

const (
	EventPhase  EventKind = "phase"
	EventNotice EventKind = "notice"
	EventError  EventKind = "error"
)

type Event struct {
	Kind EventKind
	Text string
}

type Config struct {
	Name       string
	ClientID   string // generated when empty
	Transports TransportFactory
	RNG        *rand.Rand
	// Join retry cadence and hard deadline; zero values get the defaults.
	JoinRetryInterval time.Duration
	JoinTimeout       time.Duration
	// Notify observes display-level events. May be nil.
	Notify func(Event)
}

// RoomOptions parameterize room creation on the host.
type RoomOptions struct {
	Mode       Mode
	CardCount  int
	CubeSource *game.CubeSource
	BaseTimer  int
}

type Session struct {
	cfg      Config
	clientID string
	log      *zap.SugaredLogger
	rng      *rand.Rand
	engine   *draft.Engine

	inbox chan sessionMsg
	quit  chan struct{}

	// Everything below is owned by the actor goroutine.
	phase  Phase
	mode   Mode
	roomID string
	tr     transport.Transport
	isHost bool
	roster *lobby.Roster
	state  *draft.State
	opts   game.Options
	join   *joinAttempt
}

type joinAttempt struct {
	ticker  *time.Ticker
	timeout *time.Timer
	reply   chan error
}

// Sealed inbox message set; one variant per command plus transport input.
type sessionMsg interface{ isSessionMsg() }

type inboundMsg struct{ m protocol.Message }

type createCmd struct {
	ctx   context.Context
	opts  RoomOptions
	reply chan createResult
}

type createResult struct {
	invite Invite
	err    error
}

type joinCmd struct {
	ctx    context.Context
	invite Invite
	reply  chan error
}

type addBotCmd struct{ reply chan error }

type startDraftCmd struct {
	cards []draft.Card
	opts  game.Options
	reply chan error
}

type pickCmd struct {
	cardID string
	reply  chan error
}

type leaveCmd struct{ reply chan struct{} }

type switchModeCmd struct {
	ctx   context.Context
	mode  Mode
	reply chan error
}

type viewCmd struct{ reply chan View }

func (inboundMsg) isSessionMsg()    {}
func (createCmd) isSessionMsg()     {}
func (joinCmd) isSessionMsg()       {}
func (addBotCmd) isSessionMsg()     {}
func (startDraftCmd) isSessionMsg() {}
func (pickCmd) isSessionMsg()       {}
func (leaveCmd) isSessionMsg()      {}
func (switchModeCmd) isSessionMsg() {}
func (viewCmd) isSessionMsg()       {}

// View is a race-free copy of the session's observable state.
type View struct {
	Phase    Phase
	Mode     Mode
	RoomID   string
	IsHost   bool
	ClientID string
	Roster   *lobby.Roster
	State    *draft.State
}

func New(cfg Config) *Session {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.JoinRetryInterval <= 0 {
		cfg.JoinRetryInterval = defaultJoinRetry
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Session{
		cfg:      cfg,
		clientID: cfg.ClientID,
		log:      logging.GetLogger(),
		rng:      rng,
		engine:   draft.NewEngine(rng),
		inbox:    make(chan sessionMsg, 64),
		quit:     make(chan struct{}),
		phase:    PhaseSetup,
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		var retryC, timeoutC <-chan time.Time
		if s.join != nil {
			retryC = s.join.ticker.C
			timeoutC = s.join.timeout.C
		}
		select {
		case <-s.quit:
			s.teardown()
			return
		case <-retryC:
			s.resendJoin()
		case <-timeoutC:
			s.failJoin(ErrRoomUnreachable)
		case m := <-s.inbox:
			switch msg := m.(type) {
			case inboundMsg:
				s.handleMessage(msg.m)
			case createCmd:
				msg.reply <- s.createRoom(msg.ctx, msg.opts)
			case joinCmd:
				if err := s.beginJoin(msg.ctx, msg.invite, msg.reply); err != nil {
					msg.reply <- err
				}
			case addBotCmd:
				msg.reply <- s.addBot()
			case startDraftCmd:
				msg.reply <- s.startDraft(msg.cards, msg.opts)
			case pickCmd:
				msg.reply <- s.pick(msg.cardID)
			case leaveCmd:
				s.leave()
				msg.reply <- struct{}{}
			case switchModeCmd:
				msg.reply <- s.switchMode(msg.ctx, msg.mode)
			case viewCmd:
				msg.reply <- s.view()
			}
		}
	}
}

// CreateRoom provisions a fresh room on the given transport mode with this
// session as host, and returns the invite reference to share.
func (s *Session) CreateRoom(ctx context.Context, opts RoomOptions) (Invite, error) {
	reply := make(chan createResult, 1)
	s.post(createCmd{ctx: ctx, opts: opts, reply: reply})
	res := <-reply
	return res.invite, res.err
}

// JoinRoom connects to an existing room and retries its JOIN until the host's
// roster includes this session, the roster proves full, or the join deadline
// passes.
func (s *Session) JoinRoom(ctx context.Context, invite Invite) error {
	reply := make(chan error, 1)
	s.post(joinCmd{ctx: ctx, invite: invite, reply: reply})
	return <-reply
}

// AddBot seats a bot in the lobby. Host only.
func (s *Session) AddBot() error {
	reply := make(chan error, 1)
	s.post(addBotCmd{reply: reply})
	return <-reply
}

// StartDraft shuffles and deals the card list and broadcasts the opening
// state. Host only, from the lobby.
func (s *Session) StartDraft(cards []draft.Card, opts game.Options) error {
	reply := make(chan error, 1)
	s.post(startDraftCmd{cards: cards, opts: opts, reply: reply})
	return <-reply
}

// Pick submits this participant's pick for the current pack.
func (s *Session) Pick(cardID string) error {
	reply := make(chan error, 1)
	s.post(pickCmd{cardID: cardID, reply: reply})
	return <-reply
}

// Leave announces departure, releases the transport, and returns the session
// to setup.
func (s *Session) Leave() {
	reply := make(chan struct{}, 1)
	s.post(leaveCmd{reply: reply})
	<-reply
}

// SwitchMode tears the current transport down and reconnects the same room id
// on the other transport flavor. The room is provisioned anew; no state
// migrates beyond what this session rebroadcasts.
func (s *Session) SwitchMode(ctx context.Context, mode Mode) error {
	reply := make(chan error, 1)
	s.post(switchModeCmd{ctx: ctx, mode: mode, reply: reply})
	return <-reply
}

// Snapshot returns a copy of the observable session state.
func (s *Session) Snapshot() View {
	reply := make(chan View, 1)
	s.post(viewCmd{reply: reply})
	return <-reply
}

func (s *Session) ClientID() string { return s.clientID }

// Close ends the session actor. The session is unusable afterwards.
func (s *Session) Close() {
	close(s.quit)
}

func (s *Session) post(m sessionMsg) {
	select {
	case s.inbox <- m:
	case <-s.quit:
	}
}

func (s *Session) view() View {
	v := View{
		Phase:    s.phase,
		Mode:     s.mode,
		RoomID:   s.roomID,
		IsHost:   s.isHost,
		ClientID: s.clientID,
	}
	if s.roster != nil {
		v.Roster = cloneJSON(s.roster)
	}
	if s.state != nil {
		v.State = cloneJSON(s.state)
	}
	return v
}

func (s *Session) setPhase(p Phase) {
	if s.phase == p {
		return
	}
	s.phase = p
	s.notify(EventPhase, string(p))
}

func (s *Session) notify(kind EventKind, text string) {
	if s.cfg.Notify != nil {
		s.cfg.Notify(Event{Kind: kind, Text: text})
	}
}

// cloneJSON deep-copies a snapshot the same way the wire does: through its
// JSON form.
func cloneJSON[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}
