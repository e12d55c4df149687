package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tuning := cfg.Tuning()

	var db *DB
	if cfg.Scoreboard.DBPath != "" {
		db, err = OpenDB(cfg.Scoreboard.DBPath)
		if err != nil {
			log.Printf("[db] disabled: %v", err)
			db = nil
		}
	}

	scoreboard := NewScoreboard(db, cfg.Services.ScoreboardURL, cfg.Scoreboard)
	game := NewGame(tuning, WithKillRecorder(scoreboard))
	hub := NewHub(HubDeps{
		Game:          game,
		Spawner:       NewSpawner(game, NewAssetService(cfg.Services)),
		Scoreboard:    scoreboard,
		Tokens:        NewTokenIssuer(cfg.Auth.TokenSecret, db, tuning.ShipExpiry*12),
		MaxConnsPerIP: cfg.Server.MaxConnsPerIP,
		MaxTotalConns: cfg.Server.MaxTotalConns,
	})
	go hub.Run()
	scoreboard.Start(hub)
	game.Start(hub)

	mux := SetupRoutes(hub, cfg.Server)
	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if fileExists(cfg.Server.TLSCert) && fileExists(cfg.Server.TLSKey) {
			log.Printf("Server starting on %s (TLS)", cfg.Server.Addr)
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			log.Printf("Server starting on %s", cfg.Server.Addr)
			err = server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	hub.Close()
	game.Stop()
	scoreboard.Stop()
	if db != nil {
		db.Close()
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
