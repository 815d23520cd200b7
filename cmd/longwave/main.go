package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lunarsound/longwave/internal/config"
	"github.com/lunarsound/longwave/internal/extend"
	"github.com/lunarsound/longwave/internal/httpapi"
	"github.com/lunarsound/longwave/internal/jobs"
	"github.com/lunarsound/longwave/internal/musicgen"
	"github.com/lunarsound/longwave/internal/observability"
	"github.com/lunarsound/longwave/internal/store"
	"github.com/lunarsound/longwave/internal/stream"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	godotenv.Load()
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("longwave starting up...")

	plan := extend.Plan{
		SegmentDuration:   cfg.SegmentDuration,
		OverlapDuration:   cfg.OverlapDuration,
		CrossfadeDuration: cfg.CrossfadeDuration,
	}
	if err := plan.Validate(); err != nil {
		log.Fatalf("Generation config invalid: %v", err)
	}

	tracks, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Track store: %v", err)
	}
	defer tracks.Close()

	// Generation backend
	backend := musicgen.NewClient(cfg.BackendURL, cfg.BackendKey, cfg.SampleRate)

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer healthCancel()
	if err := backend.WaitForHealthy(healthCtx); err != nil {
		log.Fatalf("Generation backend not available: %v", err)
	}

	// Short requests go straight to the backend, long ones through the
	// segment pipeline.
	processor, err := extend.NewExtendedProcessor(backend, plan, cfg.SampleRate)
	if err != nil {
		log.Fatalf("Extended processor: %v", err)
	}

	metrics := observability.NewMetrics("longwave")

	manager := jobs.NewManager(processor, tracks, metrics, jobs.Config{
		Plan:            plan,
		SampleRate:      cfg.SampleRate,
		SmoothingWindow: cfg.SmoothingMs * cfg.SampleRate / 1000,
		MaxQueue:        cfg.MaxQueue,
		MaxSeconds:      cfg.MaxSeconds,
	})
	go manager.Run(ctx)

	// Preview: fan out finished-track frames to WebRTC listeners.
	broadcaster := stream.NewBroadcaster(func(count int) {
		metrics.PreviewListeners.Set(float64(count))
	})
	go broadcaster.Run(ctx, manager.Frames())
	preview := stream.NewWebRTCHandler(broadcaster, cfg.SampleRate)

	api := httpapi.New(manager, tracks, preview)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: api.Router()}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("longwave live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
