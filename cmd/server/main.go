package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/homewatch/internal/api"
	"github.com/good-yellow-bee/homewatch/internal/api/health"
	"github.com/good-yellow-bee/homewatch/internal/eventbus"
	"github.com/good-yellow-bee/homewatch/internal/registry"
	"github.com/good-yellow-bee/homewatch/internal/rules"
	"github.com/good-yellow-bee/homewatch/internal/security"
	"github.com/good-yellow-bee/homewatch/internal/storage"
	"github.com/good-yellow-bee/homewatch/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "homewatch-server",
	Short: "HomeWatch Server - Security state aggregation and alerting engine",
	Long: `HomeWatch Server merges signals from alarm panels and sensors into a
single security status, tracks alert lifecycle events, and manages
alert acknowledgments.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("homewatch-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	// Signal handling drives the shared shutdown context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Wire the engine: registry, rules, providers, aggregator, listener.
	bus := eventbus.New()
	devices := registry.NewMemory(bus)

	ruleSet := rules.Load(cfg.Security.RulesPath)
	sensorProvider := security.NewSensorProvider(devices, ruleSet)

	aggregator := security.NewAggregator(devices,
		security.NewDefaultProvider(),
		security.NewAlarmPanelProvider(devices),
		sensorProvider,
	)

	eventLog := security.NewEventLog(store.Events())
	listener := security.NewListener(aggregator, eventLog, store.Acknowledgments(), bus, cfg.Security.Debounce)
	listener.Start(ctx)

	// Hot reload of the user detection rules override.
	if cfg.Security.RulesPath != "" {
		watcher, err := rules.NewWatcher(cfg.Security.RulesPath, func(set rules.Set) {
			sensorProvider.SetRules(set)
			listener.Refresh()
		})
		if err != nil {
			log.Printf("warning: rules hot reload disabled: %v", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	service := security.NewService(aggregator, store.Acknowledgments(), eventLog, bus)

	// Build API server. JWT secret comes from the environment; empty
	// disables authentication.
	apiCfg := &api.Config{
		Address:   cfg.Server.HTTPAddress,
		JWTSecret: []byte(os.Getenv("HOMEWATCH_JWT_SECRET")),
		RateLimit: cfg.Server.RateLimit,
		Verbose:   cfg.Verbose,
	}

	srv, err := api.New(apiCfg, store, service)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))

	log.Printf("starting homewatch-server %s", config.Version)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}
