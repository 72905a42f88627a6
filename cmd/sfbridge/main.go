package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sfbridge-dev/sfbridge/internal/api"
	"github.com/sfbridge-dev/sfbridge/internal/auth"
	"github.com/sfbridge-dev/sfbridge/internal/config"
	"github.com/sfbridge-dev/sfbridge/internal/llm"
	"github.com/sfbridge-dev/sfbridge/internal/logging"
	"github.com/sfbridge-dev/sfbridge/internal/mcptool"
	"github.com/sfbridge-dev/sfbridge/internal/orchestrator"
	"github.com/sfbridge-dev/sfbridge/internal/ratelimit"
	"github.com/sfbridge-dev/sfbridge/internal/session"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sfbridge",
		Short: "Salesforce LLM tool-calling bridge",
		Long: "sfbridge validates Salesforce credentials, maintains conversation sessions, " +
			"and brokers chat turns between an LLM backend and a remote Salesforce tool server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New("sfbridge", cfg.LogLevel)
	log.Info().
		Str("provider", cfg.Model.Provider).
		Str("model", cfg.Model.Model).
		Str("mcp_server", cfg.MCPServerURL).
		Bool("require_auth", cfg.RequireAuth).
		Msg("starting sfbridge")

	validator := auth.NewValidator(log, auth.WithTTL(cfg.TokenCacheTTL))
	defer validator.Close()

	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Close()

	store := session.NewStore(cfg.SessionIdleTimeout)
	defer store.Close()

	toolClient := mcptool.NewClient(cfg.MCPServerURL, log)
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := toolClient.Connect(connectCtx); err != nil {
		// The catalog retries lazily; a tool server that is down at boot
		// must not prevent the bridge from starting.
		log.Warn().Err(err).Msg("tool server connection failed, continuing without tools")
	}
	cancel()
	defer toolClient.Disconnect()

	registry := llm.NewRegistry()
	configured, err := llm.NewProvider(cfg.ModelConfig())
	if err != nil {
		return err
	}
	if err := registry.Register(configured); err != nil {
		return err
	}
	provider, err := registry.Get(cfg.Model.Provider)
	if err != nil {
		return err
	}
	log.Info().
		Strs("supported_models", provider.SupportedModels()).
		Msg("registered LLM provider")

	orch := orchestrator.New(provider, toolClient, cfg.ModelConfig(), log)
	server := api.NewServer(cfg, log, validator, limiter, store, orch, toolClient)
	httpServer := server.HTTPServer()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	<-sigChan
	log.Info().Msg("shutdown signal received, gracefully stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("shutdown complete")
	return nil
}
