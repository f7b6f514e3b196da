package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/seafloor-geodesy/geosea/services/api/config"
	"github.com/seafloor-geodesy/geosea/services/api/db"
	httpserver "github.com/seafloor-geodesy/geosea/services/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection error: %v", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		// The server still starts; /healthz reports the outage.
		log.Printf("database unreachable at startup: %v", err)
	}

	srv := httpserver.New(cfg, store)
	log.Printf("geosea baseline API: %s", cfg.Summary())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
