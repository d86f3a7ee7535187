// Openfolio API server: content API, chat orchestration, and the MCP
// endpoint over one HTTP listener.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openfolio/openfolio/pkg/api"
	"github.com/openfolio/openfolio/pkg/breaker"
	"github.com/openfolio/openfolio/pkg/cache"
	"github.com/openfolio/openfolio/pkg/cleanup"
	"github.com/openfolio/openfolio/pkg/config"
	"github.com/openfolio/openfolio/pkg/database"
	"github.com/openfolio/openfolio/pkg/events"
	"github.com/openfolio/openfolio/pkg/llm"
	"github.com/openfolio/openfolio/pkg/mcpserver"
	"github.com/openfolio/openfolio/pkg/ratelimit"
	"github.com/openfolio/openfolio/pkg/services"
	"github.com/openfolio/openfolio/pkg/tools"
	"github.com/openfolio/openfolio/pkg/version"
)

func main() {
	// Load .env when present; production supplies real environment variables.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting openfolio",
		"version", version.Full(),
		"env", cfg.Env,
		"port", cfg.Port)

	// 2. Database (migrations run on connect)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Cache (Redis when configured, in-process map otherwise)
	kv, err := cache.New(cfg.CacheURL)
	if err != nil {
		slog.Error("Failed to connect to cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			slog.Error("Error closing cache", "error", err)
		}
	}()

	// 4. Event bus and domain services
	bus := events.NewBus()
	defer bus.Close()

	contentService := services.NewContentService(dbClient.DB(), bus)
	sessionService := services.NewChatSessionService(dbClient.DB(), bus)
	slog.Info("Services initialized")

	retention := cleanup.NewService(cleanup.DefaultConfig(), sessionService)
	retention.Start(ctx)
	defer retention.Stop()

	// 5. Tool registry. The chat adapter stays read-only; write tools are
	// reachable through MCP only.
	registry := tools.NewRegistry(contentService)
	chatAdapter := tools.NewAdapter(registry, false)

	// 6. Chat orchestration: limiter, breaker, LLM client
	limiter := ratelimit.NewLimiter(kv, ratelimit.Config{
		Capacity:   cfg.RateLimit.Capacity,
		RefillRate: cfg.RateLimit.RefillRate,
		TTL:        cfg.RateLimit.TTL,
	})
	brk := breaker.New(breaker.Config{Name: cfg.LLM.Provider}, bus)
	llmClient := llm.NewOpenAIClient(llm.OpenAIConfig{
		Provider:    cfg.LLM.Provider,
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})

	chatCfg := services.DefaultChatConfig()
	if cfg.ChatSystemPrompt != "" {
		chatCfg.SystemPrompt = cfg.ChatSystemPrompt
	}
	chatCfg.RetryConfig.MaxRetries = cfg.LLM.MaxRetries
	chatService := services.NewChatService(
		sessionService, limiter, brk, llmClient, chatAdapter, bus, chatCfg)
	slog.Info("Chat orchestrator initialized",
		"provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	// 7. MCP endpoint sharing the HTTP listener
	mcpSessions := mcpserver.NewSessionManager(mcpserver.DefaultIdleTTL)
	defer mcpSessions.Close()
	engine := mcpserver.NewEngine(registry, contentService)

	// 8. HTTP server
	httpServer := api.NewServer(cfg, dbClient, contentService, chatService, sessionService, kv)
	httpServer.SetMCPHandler(mcpserver.NewHTTPHandler(engine, mcpSessions))

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
