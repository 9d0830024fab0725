package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/google"
	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/logging"
	"github.com/mailfold/mailfold/internal/resources"
	"github.com/mailfold/mailfold/internal/server"
	"github.com/mailfold/mailfold/internal/tools/organize_tools"
)

// serveConfig carries the serve command's settings into runServe.
type serveConfig struct {
	yolo           bool
	dryRun         bool
	taxonomyFile   string
	verbose        bool
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on stdio, exposing the
organize pipeline as tools for AI assistants: previews, label listing,
message classification, organize runs, and run reports.

Safety Mode:
  By default the server is read-only and registers only tools that
  cannot modify the mailbox; organize_preview still works because it
  runs against a dry-run stack. Use --yolo to also register the
  mutating tools (organize_run, labels_ensure).

Authentication:
  Tokens are read from the local cache. Run 'mailfold auth' for every
  account the server should reach; tools fail per-call for accounts
  without a cached token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.yolo, "yolo", false, "Enable tools that modify the mailbox. Default is read-only mode.")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "Force every mailbox write into dry-run mode, regardless of tool arguments")
	cmd.Flags().StringVar(&cfg.taxonomyFile, "taxonomy", "", "Taxonomy YAML file. Can also use MAILFOLD_TAXONOMY env var. Default: built-in taxonomy.")
	cmd.Flags().BoolVar(&cfg.verbose, "verbose", false, "Enable debug logging on stderr")
	cmd.Flags().BoolVar(&cfg.metricsEnabled, "metrics-enabled", false, "Serve Prometheus metrics and health probes on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg serveConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load metrics config from environment if not set via flags
	if !cfg.metricsEnabled && os.Getenv("METRICS_ENABLED") == "true" {
		cfg.metricsEnabled = true
	}
	if cfg.metricsAddr == "" || cfg.metricsAddr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.metricsAddr = addr
		}
	}

	// stdout carries the protocol, so all logging goes to stderr.
	logger := newLogger(cfg.verbose)

	if err := google.MigrateDefaultToken(); err != nil {
		logger.Warn("failed to migrate legacy token file", logging.Err(err))
	}

	tax, err := loadTaxonomy(cfg.taxonomyFile)
	if err != nil {
		return err
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.DryRun = cfg.dryRun

	serverContext, err := server.NewServerContext(shutdownCtx, tax, gatewayCfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	if provider.Enabled() {
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	healthChecker := server.NewHealthChecker(serverContext)

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
			HealthChecker:           healthChecker,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm the metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("mailfold", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// readOnly is the inverse of yolo
	readOnly := !cfg.yolo

	// Register all tools and resources
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	healthChecker.SetReady(true)
	logger.Info("MCP server listening on stdio",
		"read_only", readOnly,
		"dry_run", cfg.dryRun,
		"accounts", serverContext.Accounts())

	return runStdioServer(mcpSrv)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Organize",
			register: func() error {
				return organize_tools.RegisterOrganizeTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Resources",
			register: func() error {
				return resources.RegisterResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}
