// Command maestro is the orchestrator's CLI entrypoint: `serve` wires every
// component (store, bus, cross-reference registry, LLM gateway, swarm
// policy, code-unit controller, builder, pipeline executor, orchestrator
// supervisor, HTTP API) and runs until signalled; `migrate` applies the
// embedded schema migrations and exits.
//
// Grounded on cmd/tarsy/main.go's flag/env/godotenv wiring, translated from
// bare flag to spf13/cobra subcommands per SPEC_FULL.md §3.11 — the pack
// shows cobra twice (C360Studio-semspec, ShayCichocki-Alphie) for exactly
// this "entrypoint with subcommands" shape.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ensemble-maestro/swarm/pkg/api"
	"github.com/ensemble-maestro/swarm/pkg/builder"
	"github.com/ensemble-maestro/swarm/pkg/bus"
	"github.com/ensemble-maestro/swarm/pkg/codeunit"
	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/ensemble-maestro/swarm/pkg/crossref"
	"github.com/ensemble-maestro/swarm/pkg/database"
	"github.com/ensemble-maestro/swarm/pkg/designer"
	"github.com/ensemble-maestro/swarm/pkg/llmgateway"
	"github.com/ensemble-maestro/swarm/pkg/pipeline"
	"github.com/ensemble-maestro/swarm/pkg/store"
	"github.com/ensemble-maestro/swarm/pkg/supervisor"
	"github.com/ensemble-maestro/swarm/pkg/swarmpolicy"
	redislib "github.com/redis/go-redis/v9"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	var configDir string

	root := &cobra.Command{
		Use:   "maestro",
		Short: "Multi-stage LLM-driven code generation orchestrator",
	}
	root.PersistentFlags().StringVar(&configDir,
		"config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")

	root.AddCommand(newServeCommand(&configDir))
	root.AddCommand(newMigrateCommand(&configDir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("maestro exited with error", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a startup failure to spec.md §6's exit codes: 2 for
// invalid configuration, 3 for a fatal store failure, 1 otherwise.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, errInvalidConfig):
		return 2
	case errors.Is(err, errStoreFailure):
		return 3
	default:
		return 1
	}
}

var (
	errInvalidConfig = fmt.Errorf("invalid configuration")
	errStoreFailure  = fmt.Errorf("fatal store failure at startup")
)

func loadEnv(configDir string) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}
}

func newMigrateCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadEnv(*configDir)

			dbCfg, err := database.LoadConfigFromEnv()
			if err != nil {
				return fmt.Errorf("%w: %v", errInvalidConfig, err)
			}

			dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.Database, dbCfg.SSLMode)
			if err := database.MigrateDSN(dsn, dbCfg.Database); err != nil {
				return fmt.Errorf("%w: %v", errStoreFailure, err)
			}

			slog.Info("migrations applied")
			return nil
		},
	}
}

func newServeCommand(configDir *string) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, orchestrator supervisor, and pipeline infrastructure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configDir, httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", getEnv("HTTP_ADDR", ":8080"), "HTTP listen address")
	return cmd
}

func serve(ctx context.Context, configDir, httpAddr string) error {
	loadEnv(configDir)

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	pool, err := database.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", errStoreFailure, err)
	}
	defer pool.Close()

	st := store.New(pool)

	msgBus, closeBus, err := buildBus(cfg.Bus)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	if closeBus != nil {
		defer closeBus()
	}

	cr := crossref.New(st.CrossReferences, crossref.NewMemoryGraphStore(), crossref.NewMemorySearchIndex())

	artifactDir := cfg.Artifacts.Dir
	if artifactDir == "" {
		artifactDir = "artifacts"
	}

	designerAgent, err := cfg.AgentRegistry.Get("designer")
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	designerGateway, err := llmgateway.NewFromConfig(cfg.LLMProviderRegistry, designerAgent.LLMProvider, artifactDir)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	ds := designer.New(designerGateway, cr, st, msgBus)

	methodWorkerAgent, err := cfg.AgentRegistry.Get("method_worker")
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	workerGateway, err := llmgateway.NewFromConfig(cfg.LLMProviderRegistry, methodWorkerAgent.LLMProvider, artifactDir)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	worker := codeunit.NewLLMMethodWorker(workerGateway)

	policy := swarmpolicy.New(cfg.Swarm)
	controller := codeunit.New(worker, msgBus, st, policy, cfg.Swarm)

	stagingDir := filepath.Join(artifactDir, "staging")
	bd := builder.New(builder.ExecToolchain{}, stagingDir)

	executor := pipeline.New(st, msgBus, cr, ds, bd, cfg.AgentRegistry, cfg.LLMProviderRegistry, artifactDir)

	sup := supervisor.New(msgBus, st, controller, cfg.Swarm.MaxControllers)
	sup.Start(ctx)
	defer sup.Stop()

	server := api.NewServer(cfg, st, executor)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpAddr)
		if err := server.Start(httpAddr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// buildBus constructs the Bus over the configured backend, returning a
// close function for backends that own a network connection (Redis).
func buildBus(cfg *config.BusConfig) (*bus.Bus, func(), error) {
	switch cfg.Backend {
	case config.BusBackendRedis:
		client := redislib.NewClient(&redislib.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return bus.New(bus.NewRedisStore(client), cfg), func() { _ = client.Close() }, nil
	case config.BusBackendMemory:
		return bus.New(bus.NewMemoryStore(), cfg), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus backend %q", cfg.Backend)
	}
}
