package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"arena-server/internal/arena"
	"arena-server/internal/config"
	"arena-server/internal/content"
	"arena-server/internal/logging"
	"arena-server/internal/mode"
	"arena-server/internal/store"
	httptransport "arena-server/internal/transport/http"
	"arena-server/internal/ws"
)

func main() {
	app, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(app.Log)
	cfg := app.Server

	st, wallets := openStore(cfg)
	lib := content.DefaultLibrary()
	modes := mode.DefaultRegistry()

	coord := arena.New(st, modes, lib,
		arena.WithDisconnectGrace(time.Duration(cfg.DisconnectGraceMS)*time.Millisecond),
		arena.WithOpTimeout(time.Duration(cfg.StoreTimeoutMS)*time.Millisecond),
	)
	hub := ws.NewHub(coord)
	coord.SetBroadcaster(hub)
	coord.StartJanitor(context.Background(), time.Duration(cfg.JanitorIntervalMS)*time.Millisecond)

	r := httptransport.NewRouter(coord, modes, wallets, hub)
	logRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Strs("modes", modes.IDs()).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

// openStore picks Postgres when a DSN is configured, the in-memory store
// otherwise. Both satisfy the coordinator's Store interface.
func openStore(cfg config.ServerConfig) (arena.Store, httptransport.WalletStore) {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("POSTGRES_DSN not set; using in-memory store, state is lost on exit")
		mem := store.NewMemory()
		return mem, mem
	}
	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.StoreTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}
	return st, st
}

func logRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
