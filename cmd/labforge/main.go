// Command labforge runs the network-lab orchestration HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/labforge/pkg/adapters"
	"github.com/codeready-toolchain/labforge/pkg/api"
	"github.com/codeready-toolchain/labforge/pkg/config"
	"github.com/codeready-toolchain/labforge/pkg/notify"
	"github.com/codeready-toolchain/labforge/pkg/orchestrator"
	"github.com/codeready-toolchain/labforge/pkg/registry"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment file", "path", envPath)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	artifacts, err := newArtifactStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize artifact store", "error", err)
		os.Exit(1)
	}

	llm := adapters.NewHTTPLLMClient(cfg.LLMEndpoint, cfg.LLMCredential)
	linter := adapters.NewHTTPLinterClient(cfg.LinterEndpoint)
	runner := adapters.NewHTTPRunnerClient(cfg.RunnerEndpoint)
	notifier := notify.New(cfg.Slack)

	reg := registry.New(cfg.PendingQueueSize)
	driver := orchestrator.NewDriver(reg, cfg, llm, linter, runner, artifacts, notifier)
	server := api.NewServer(cfg, reg, driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := server.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server exited", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}

// newArtifactStore picks S3 when ARTIFACT_BUCKET is configured, and an
// in-memory store otherwise. The in-memory store lives only inside this
// process, so a runner outside it cannot read the payloads stored there.
func newArtifactStore(cfg *config.Config) (adapters.ArtifactStore, error) {
	if cfg.ArtifactBucket == "" {
		slog.Info("No artifact bucket configured, using in-memory artifact store")
		return adapters.NewMemoryArtifactStore(), nil
	}
	return adapters.NewS3ArtifactStore(context.Background(), cfg.ArtifactBucket)
}
