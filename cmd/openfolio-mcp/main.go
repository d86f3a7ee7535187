// Openfolio MCP server over stdio, for hosts that spawn local processes.
// The streamable HTTP transport lives on the main API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/openfolio/openfolio/pkg/database"
	"github.com/openfolio/openfolio/pkg/mcpserver"
	"github.com/openfolio/openfolio/pkg/services"
	"github.com/openfolio/openfolio/pkg/tools"
	"github.com/openfolio/openfolio/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	// Stdout carries the protocol; all logging must go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	slog.Info("Starting openfolio MCP stdio server", "version", version.Full())

	ctx := context.Background()

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

	contentService := services.NewContentService(dbClient.DB(), nil)
	engine := mcpserver.NewEngine(tools.NewRegistry(contentService), contentService)

	runner := mcpserver.NewStdioRunner(engine, os.Stdin, os.Stdout)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Stdio server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Stdio server stopped")
}
