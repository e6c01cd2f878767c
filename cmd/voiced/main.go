package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gabacool/bidirectional-voice-claude/internal/config"
	"github.com/gabacool/bidirectional-voice-claude/internal/httpapi"
	"github.com/gabacool/bidirectional-voice-claude/internal/observability"
	"github.com/gabacool/bidirectional-voice-claude/internal/session"
	"github.com/gabacool/bidirectional-voice-claude/internal/voice"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	engines, err := voice.ResolveEngines(cfg)
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	log.Printf("voice provider: %s", engines.Detail)

	sessions := session.NewManager(cfg.SessionIdleTimeout)
	sessions.SetExpireHook(func(info session.Info) {
		metrics.SessionEvents.WithLabelValues(string(info.Kind), "expired").Inc()
		metrics.ActiveSessions.WithLabelValues(string(info.Kind)).Set(float64(sessions.ActiveCount(info.Kind)))
	})

	api := httpapi.New(cfg, sessions, engines, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
