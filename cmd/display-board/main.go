package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"clinicops/internal/config"
	"clinicops/internal/display"
)

func main() {
	cfg := config.Load()
	if cfg.QueueServiceURL == "" {
		log.Fatal("QUEUE_SERVICE_URL is required")
	}
	if cfg.DisplayTenantID == "" || cfg.DisplayBranchID == "" {
		log.Fatal("DISPLAY_TENANT_ID and DISPLAY_BRANCH_ID are required")
	}

	announcer := display.NewAnnouncer(nil)
	subscriber := display.NewSubscriber(display.Options{
		BaseURL:           cfg.QueueServiceURL,
		TenantID:          cfg.DisplayTenantID,
		BranchID:          cfg.DisplayBranchID,
		CueInterval:       cfg.CuePollInterval,
		ReconcileInterval: cfg.ReconcileInterval,
	}, announcer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	log.Printf("display board following %s (tenant=%s branch=%s)", cfg.QueueServiceURL, cfg.DisplayTenantID, cfg.DisplayBranchID)
	subscriber.Run(ctx)
}
