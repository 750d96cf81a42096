package main

import (
	"context"
	"log"
	"time"

	"satstall/internal/checkout"
	"satstall/internal/config"
	"satstall/internal/db"
	"satstall/internal/store"
	"satstall/internal/watcher"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)

	// headless mode: no checkout sessions wait on receipts here, but the
	// registry keeps Notify a no-op instead of a nil deref
	w := &watcher.Watcher{
		Store:         st,
		Receipts:      checkout.NewConfirmations(),
		RelayEndpoint: cfg.Relay.URL,
		Interval:      time.Duration(cfg.Watcher.IntervalSeconds) * time.Second,
		Backfill:      time.Duration(cfg.Watcher.BackfillMinutes) * time.Minute,
	}

	log.Printf("watcher started (relay=%s)", cfg.Relay.URL)
	w.Run(ctx)
}
