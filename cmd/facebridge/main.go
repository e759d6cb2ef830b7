// Package main is the facebridge process entry point: a cobra CLI exposing
// start, validate-rules, and version subcommands over the same Orchestrator
// wiring, grounded on the teacher's migrations CLI shape
// (internal/infrastructure/migrations/cli.go) and cmd/server/main.go's
// signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-labs/facebridge/internal/config"
	"github.com/kestrel-labs/facebridge/internal/desktopclient"
	"github.com/kestrel-labs/facebridge/internal/diagnostics"
	"github.com/kestrel-labs/facebridge/internal/engine"
	"github.com/kestrel-labs/facebridge/internal/mobileclient"
	"github.com/kestrel-labs/facebridge/internal/orchestrator"
	"github.com/kestrel-labs/facebridge/internal/realtime"
	"github.com/kestrel-labs/facebridge/internal/rulecache"
	"github.com/kestrel-labs/facebridge/internal/rules"
	"github.com/kestrel-labs/facebridge/pkg/logger"
)

const (
	serviceName    = "facebridge"
	serviceVersion = "0.1.0"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var rulecachePath string
	var diagnosticsAddr string

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Bridges a mobile face-tracking source to a desktop avatar application",
		Long:  "facebridge reads live face-tracking data over UDP, runs it through a rule-driven transformation engine, and streams the result to a desktop avatar application over a WebSocket plugin API.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the config document")
	root.PersistentFlags().StringVar(&rulecachePath, "rulecache-db", "facebridge-rulecache.db", "path to the durable last-good snapshot database")
	root.PersistentFlags().StringVar(&diagnosticsAddr, "diagnostics-addr", ":8090", "address the diagnostics HTTP server listens on")

	root.AddCommand(
		startCommand(&configPath, &rulecachePath, &diagnosticsAddr),
		validateRulesCommand(&configPath),
		versionCommand(),
	)
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the facebridge version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", serviceName, serviceVersion)
			return nil
		},
	}
}

func validateRulesCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-rules",
		Short: "Load and validate the configured rules file without starting the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			baseLogger := newBaseLogger(doc.GeneralSettings.LogLevel)
			repo := rules.NewRepository(doc.GeneralSettings.RulesFile, baseLogger, nil, nil)
			report := repo.Load()
			if report.LoadError != nil {
				return fmt.Errorf("rules file is invalid: %w", report.LoadError)
			}

			fmt.Printf("%d rules valid, %d rejected\n", len(report.ValidRules), len(report.InvalidRules))
			for _, invalid := range report.InvalidRules {
				fmt.Printf("  REJECTED %s: %s\n", invalid.Name, invalid.Error)
			}
			return nil
		},
	}
}

func startCommand(configPath, rulecachePath, diagnosticsAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the facebridge pipeline until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, *rulecachePath, *diagnosticsAddr)
		},
	}
}

func newBaseLogger(level string) *slog.Logger {
	return logger.NewLogger(logger.Config{
		Level:  level,
		Format: "json",
		Output: "stdout",
	})
}

func run(configPath, rulecachePath, diagnosticsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := rulecache.Open(ctx, rulecachePath)
	if err != nil {
		return fmt.Errorf("opening rule/config cache: %w", err)
	}
	defer cache.Close()

	baseLogger := newBaseLogger("info")

	eventBus := realtime.NewEventBus(baseLogger, realtime.NewRealtimeMetrics(serviceName))
	publisher := realtime.NewEventPublisher(eventBus, baseLogger, nil)
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("starting event bus: %w", err)
	}

	configStore, err := config.NewStore(configPath, baseLogger, publisher, cache)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	doc := configStore.Document()
	baseLogger = newBaseLogger(doc.GeneralSettings.LogLevel)

	rulesRepo := rules.NewRepository(doc.GeneralSettings.RulesFile, baseLogger, publisher, cache)

	transformEngine, err := engine.New(rulesRepo, baseLogger, publisher, doc.EngineConfig())
	if err != nil {
		return fmt.Errorf("constructing transformation engine: %w", err)
	}

	mobileClient := mobileclient.New(doc.MobileClientConfig(), baseLogger, publisher)
	desktopClient := desktopclient.New(doc.DesktopClientConfig(), baseLogger, publisher, transformEngine)

	orch := orchestrator.New(
		orchestrator.Config{},
		baseLogger,
		transformEngine,
		mobileClient,
		desktopClient,
		rulesRepo,
		configStore,
		eventBus,
		publisher,
	)

	diagServer := diagnostics.NewServer(diagnosticsAddr, baseLogger, orch.Progress)
	diagServer.RegisterComponent("mobile_client", mobileClient.Stats)
	diagServer.RegisterComponent("desktop_client", desktopClient.Stats)
	diagServer.RegisterComponent("transformation_engine", transformEngine.Stats)

	errCh := make(chan error, 1)
	go func() {
		errCh <- diagServer.Start(ctx, 5*time.Second)
	}()

	baseLogger.Info("facebridge starting", "version", serviceVersion, "diagnostics_addr", diagnosticsAddr)
	orch.Run(ctx)
	baseLogger.Info("facebridge stopped")

	if err := <-errCh; err != nil {
		return fmt.Errorf("diagnostics server: %w", err)
	}
	return nil
}
