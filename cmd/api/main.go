package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"satstall/internal/checkout"
	"satstall/internal/config"
	"satstall/internal/db"
	internalhttp "satstall/internal/http"
	"satstall/internal/invoicing"
	"satstall/internal/relay"
	"satstall/internal/store"
	"satstall/internal/watcher"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	publisher := relay.NewPublisher(cfg.Relay.URL, time.Duration(cfg.Relay.PublishTimeoutSeconds)*time.Second)
	defer publisher.Close()

	gateway := invoicing.NewHTTPGateway(cfg.Gateway.URL, time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second)
	orchestrator := &invoicing.Orchestrator{
		Gateway:    gateway,
		Strict:     cfg.Gateway.Strict,
		InvoiceTTL: time.Duration(cfg.Checkout.InvoiceTTLMinutes) * time.Minute,
	}

	receipts := checkout.NewConfirmations()
	coordinator := &checkout.Coordinator{
		Orchestrator:   orchestrator,
		Publisher:      publisher,
		Receipts:       receipts,
		ReceiptTimeout: time.Duration(cfg.Checkout.ReceiptTimeoutSeconds) * time.Second,
	}

	// the watcher runs in-process so relay receipts reach waiting checkouts
	w := &watcher.Watcher{
		Store:         st,
		Receipts:      receipts,
		RelayEndpoint: cfg.Relay.URL,
		Interval:      time.Duration(cfg.Watcher.IntervalSeconds) * time.Second,
		Backfill:      time.Duration(cfg.Watcher.BackfillMinutes) * time.Minute,
	}
	go w.Run(ctx)

	h := internalhttp.NewHandler(coordinator, st)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}
