package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Abhishekverma657/AroundU-backend/internal/agent"
	"github.com/Abhishekverma657/AroundU-backend/internal/config"
	httpHandler "github.com/Abhishekverma657/AroundU-backend/internal/delivery/http"
	"github.com/Abhishekverma657/AroundU-backend/internal/delivery/ws"
	"github.com/Abhishekverma657/AroundU-backend/internal/logging"
	"github.com/Abhishekverma657/AroundU-backend/internal/middleware"
	"github.com/Abhishekverma657/AroundU-backend/internal/registry"
	"github.com/Abhishekverma657/AroundU-backend/internal/usecase"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg := config.LoadFromEnv()
	log := logging.New(cfg.LogLevel)

	// Initialize dependencies
	catalog := agent.DefaultCatalog()
	generator := agent.NewOpenAIGenerator(cfg.OpenAIModel)
	broker := agent.NewBroker(catalog, generator, log)
	names := usecase.NewNameGenerator()
	reg := registry.New(catalog, names, log)
	hub := ws.NewHub()

	timings := ws.DefaultTimings()
	timings.GraceWindow = cfg.MatchGraceWindow
	orch := ws.NewOrchestrator(reg, broker, catalog, hub, log, timings)

	handler := httpHandler.NewHandler(orch, reg, cfg, log)

	wsLimiter := middleware.NewIPRateLimiter(cfg.RateLimitWS, 10)
	apiLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAPI, 20)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", middleware.RateLimitFunc(wsLimiter, handler.HandleWebSocket))
	mux.HandleFunc("/healthz", middleware.RateLimitFunc(apiLimiter, handler.HandleHealth))

	securedHandler := middleware.SecurityHeaders(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      securedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err.Error())
		os.Exit(1)
	}

	broker.Close()
	log.Info("server exited gracefully")
}
