package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/TrumanStellar/Story-Creation/internal/api"
	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/chain/stellar"
	"github.com/TrumanStellar/Story-Creation/internal/config"
	"github.com/TrumanStellar/Story-Creation/internal/database"
	"github.com/TrumanStellar/Story-Creation/internal/syncer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()

	log.Printf("Story chain service starting...")
	log.Printf("Network: %s", cfg.Network)
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("Factory: %s", cfg.FactoryAddress)
	log.Printf("Port: %d", cfg.Port)

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Create the Stellar integration
	st, err := stellar.New(cfg, db)
	if err != nil {
		log.Fatalf("Failed to create stellar integration: %v", err)
	}
	registry := chain.NewRegistry(st)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Start the sync loops
	if st.Enabled() && cfg.StellarEnableSync {
		sy := syncer.NewSyncer(db, st, cfg.SyncInterval, cfg.SettleInterval, cfg.SettleMaxAttempts)
		go sy.RunStateSync(ctx)
		go sy.RunSettlement(ctx)
	} else {
		log.Printf("Chain sync disabled")
	}

	// Create and start HTTP server
	var stForAPI *stellar.Service
	if st.Enabled() {
		stForAPI = st
	}
	server := api.NewServer(cfg, db, registry, stForAPI)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	// Run HTTP server
	go func() {
		log.Printf("HTTP server listening on port %d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	log.Printf("Shutting down HTTP server...")
	httpServer.Shutdown(context.Background())
	log.Printf("Shutdown complete")
}
