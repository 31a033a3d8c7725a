package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/cubehall/draftroom/internal/logging"
	"github.com/cubehall/draftroom/internal/relay"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("RELAYD_ADDR", ":7780"), "listen address")
	dbPath := flag.String("db", os.Getenv("RELAYD_DB"), "sqlite path for the room message log (in-memory when empty)")
	flag.Parse()

	logger := logging.GetLogger()

	var store relay.Store
	if *dbPath == "" {
		store = relay.NewMemStore()
	} else {
		s, err := relay.NewSQLStore(*dbPath)
		if err != nil {
			logger.Fatalw("cannot open message store", "path", *dbPath, "error", err.Error())
		}
		store = s
	}
	defer store.Close()

	srv := relay.NewServer(store)
	logger.Infow("relay listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv.Routes()); err != nil {
		logger.Fatalw("relay stopped", "error", err.Error())
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
