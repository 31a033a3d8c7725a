package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/cubehall/draftroom/game"
	"github.com/cubehall/draftroom/internal/cards"
	"github.com/cubehall/draftroom/internal/draft"
	"github.com/cubehall/draftroom/internal/history"
	"github.com/cubehall/draftroom/internal/logging"
	"github.com/cubehall/draftroom/internal/session"
	"github.com/cubehall/draftroom/internal/transport"
)

func main() {
	_ = godotenv.Load()

	name := flag.String("name", "drafter", "display name for your seat")
	joinRef := flag.String("join", "", "invite reference of a room to join")
	cubeID := flag.String("cube", "", "catalog cube id to draft")
	listPath := flag.String("list", "", "path to a free-text card list")
	relayURL := flag.String("relay", envOr("RELAY_URL", "ws://127.0.0.1:7780"), "relay base URL")
	catalogURL := flag.String("catalog", envOr("CATALOG_URL", "https://cubecobra.com/api"), "card catalog base URL")
	bots := flag.Int("bots", 0, "bot seats to add before starting (host only)")
	timer := flag.Int("timer", 60, "seconds for the first pick of a pack")
	qrPath := flag.String("qr", "", "write the invite QR code PNG here (host only)")
	flag.Parse()

	logger := logging.GetLogger()
	ctx := context.Background()

	sess := session.New(session.Config{
		Name: *name,
		Transports: func(mode session.Mode) (transport.Transport, error) {
			switch mode {
			case session.ModeRelay:
				return transport.NewRelayTransport(*relayURL), nil
			case session.ModeBus:
				return transport.NewBus().Transport(), nil
			default:
				return nil, fmt.Errorf("unknown transport mode %q", mode)
			}
		},
		Notify: func(ev session.Event) {
			logger.Infow("session event", "kind", ev.Kind, "text", ev.Text)
		},
	})
	defer sess.Close()

	if *joinRef != "" {
		runGuest(ctx, sess, *joinRef)
		return
	}
	runHost(ctx, sess, *cubeID, *listPath, *catalogURL, *bots, *timer, *qrPath)
}

func runGuest(ctx context.Context, sess *session.Session, ref string) {
	logger := logging.GetLogger()
	invite, err := session.ParseInvite(ref)
	if err != nil {
		logger.Fatalw("bad invite", "error", err.Error())
	}
	if err := sess.JoinRoom(ctx, invite); err != nil {
		logger.Fatalw("cannot join room", "error", err.Error())
	}
	logger.Infow("joined room", "room", invite.RoomID)
	autoDraft(sess)
}

func runHost(ctx context.Context, sess *session.Session, cubeID, listPath, catalogURL string, bots, timer int, qrPath string) {
	logger := logging.GetLogger()
	pool := loadCards(ctx, cubeID, listPath, catalogURL)
	if len(pool) == 0 {
		logger.Fatalw("no cards: provide -cube or -list")
	}

	invite, err := sess.CreateRoom(ctx, session.RoomOptions{
		Mode:       session.ModeRelay,
		CardCount:  len(pool),
		CubeSource: cubeSource(cubeID, listPath),
		BaseTimer:  timer,
	})
	if err != nil {
		logger.Fatalw("cannot create room", "error", err.Error())
	}
	fmt.Printf("share this invite: %s\n", invite)
	if qrPath != "" {
		png, err := invite.QR()
		if err == nil {
			err = os.WriteFile(qrPath, png, 0o644)
		}
		if err != nil {
			logger.Errorw("cannot write invite QR", "path", qrPath, "error", err.Error())
		}
	}

	for i := 0; i < bots; i++ {
		if err := sess.AddBot(); err != nil {
			logger.Errorw("cannot add bot", "error", err.Error())
			break
		}
	}

	// Wait for seats to fill, then deal.
	for {
		v := sess.Snapshot()
		if v.Roster != nil && len(v.Roster.Players) >= 2 && v.Roster.IsFull() {
			break
		}
		time.Sleep(time.Second)
	}
	if err := sess.StartDraft(pool, game.Options{PacksPerSeat: 3, PackSize: 15, BaseTimer: timer}); err != nil {
		logger.Fatalw("cannot start draft", "error", err.Error())
	}
	autoDraft(sess)
}

// autoDraft picks the first remaining card whenever it is this seat's turn to
// pick. Card grids and deck-building views are a different program's job;
// this keeps a headless seat moving.
func autoDraft(sess *session.Session) {
	logger := logging.GetLogger()
	for {
		v := sess.Snapshot()
		if v.Phase == session.PhaseRecap {
			printPool(v)
			return
		}
		if v.Phase == session.PhaseDraft && v.State != nil {
			if seat, ok := v.State.SeatByClientID(v.ClientID); ok {
				if !v.State.Players[seat].HasPicked {
					pack := v.State.CurrentPack(seat)
					if len(pack) > 0 {
						if err := sess.Pick(pack[0].ID); err != nil {
							logger.Errorw("pick failed", "error", err.Error())
						}
					}
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func printPool(v session.View) {
	seat, ok := v.State.SeatByClientID(v.ClientID)
	if !ok {
		return
	}
	fmt.Printf("draft complete, %s drafted:\n", v.State.Players[seat].Name)
	for _, c := range v.State.Players[seat].Pool {
		fmt.Printf("  %s\n", c.Name)
	}
}

func loadCards(ctx context.Context, cubeID, listPath, catalogURL string) []draft.Card {
	logger := logging.GetLogger()
	if listPath != "" {
		text, err := os.ReadFile(listPath)
		if err != nil {
			logger.Fatalw("cannot read card list", "path", listPath, "error", err.Error())
		}
		return cards.ParseList(string(text))
	}
	if cubeID == "" {
		return nil
	}

	if store, err := history.New(historyPath()); err == nil {
		if recent, err := store.Recent(ctx, 5); err == nil && len(recent) > 0 {
			logger.Infow("recently drafted cubes", "cubes", recent)
		}
		_ = store.Touch(ctx, cubeID)
		_ = store.Close()
	}

	pool, err := cards.FetchCube(ctx, nil, catalogURL, cubeID)
	if err != nil {
		logger.Fatalw("cannot fetch cube", "cube", cubeID, "error", err.Error())
	}
	return pool
}

func cubeSource(cubeID, listPath string) *game.CubeSource {
	if cubeID != "" {
		return &game.CubeSource{Kind: game.CubeSourceCatalog, Ref: cubeID}
	}
	if listPath != "" {
		return &game.CubeSource{Kind: game.CubeSourceList, Ref: filepath.Base(listPath)}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "draftroom-history.db"
	}
	dir := filepath.Join(home, ".draftroom")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "draftroom-history.db"
	}
	return filepath.Join(dir, "history.db")
}
