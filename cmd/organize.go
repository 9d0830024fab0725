package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/google"
	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/logging"
	"github.com/mailfold/mailfold/internal/organizer"
	"github.com/mailfold/mailfold/internal/server"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

// runtimeOptions collects the flags shared by every command that
// touches a mailbox.
type runtimeOptions struct {
	account      string
	taxonomyFile string
	dryRun       bool
	verbose      bool
}

func (o *runtimeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&o.taxonomyFile, "taxonomy", "", "Taxonomy YAML file. Can also use MAILFOLD_TAXONOMY env var. Default: built-in taxonomy.")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Log what would change without touching the mailbox")
	cmd.Flags().BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
}

// newLogger builds the process logger. Everything goes to stderr so
// stdout stays free for command output, and for the protocol in serve
// mode.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadTaxonomy resolves the taxonomy: an explicit file, the
// MAILFOLD_TAXONOMY environment variable, or the built-in default.
func loadTaxonomy(file string) (*taxonomy.Taxonomy, error) {
	if file == "" {
		file = os.Getenv("MAILFOLD_TAXONOMY")
	}
	if file == "" {
		return taxonomy.Default(), nil
	}
	tax, err := taxonomy.Load(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy from %s: %w", file, err)
	}
	return tax, nil
}

// mailboxStack wires the pieces every mailbox command runs on: the
// logger, the taxonomy, the rate-limited gateway, and the Gmail
// service for one account.
type mailboxStack struct {
	logger  *slog.Logger
	tax     *taxonomy.Taxonomy
	gateway *gateway.Gateway
	service *gmail.Service
	metrics *instrumentation.Metrics
}

func buildMailboxStack(ctx context.Context, opts runtimeOptions, metrics *instrumentation.Metrics) (*mailboxStack, error) {
	logger := newLogger(opts.verbose)

	if err := google.MigrateDefaultToken(); err != nil {
		logger.Warn("failed to migrate legacy token file", logging.Err(err))
	}

	tax, err := loadTaxonomy(opts.taxonomyFile)
	if err != nil {
		return nil, err
	}

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.DryRun = opts.dryRun
	gw := gateway.New(gatewayCfg, logging.WithAccount(logger, opts.account), metrics)

	svc, err := gmail.NewServiceForAccount(ctx, opts.account, gw)
	if err != nil {
		if !gmail.HasTokenForAccount(opts.account) {
			return nil, fmt.Errorf("%s", google.GetAuthenticationErrorMessage(opts.account))
		}
		return nil, err
	}

	return &mailboxStack{logger: logger, tax: tax, gateway: gw, service: svc, metrics: metrics}, nil
}

func (s *mailboxStack) newOrganizer(cfg organizer.Config) (*organizer.Organizer, error) {
	org, err := organizer.New(cfg, s.service, s.gateway, s.tax, s.logger, s.metrics)
	if err != nil {
		return nil, err
	}
	org.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(s.logger,
		instrumentation.DefaultConfig().AuditLogging))
	return org, nil
}

// startRunMetrics exposes /metrics and /healthz for the duration of a
// long run. The returned shutdown function is safe to call even when
// metrics are disabled.
func startRunMetrics(ctx context.Context, addr string) (*instrumentation.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	providerShutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}
	if !provider.Enabled() {
		return nil, providerShutdown, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
	})
	if err != nil {
		providerShutdown()
		return nil, nil, fmt.Errorf("failed to create metrics server: %w", err)
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
	case err := <-metricsErr:
		providerShutdown()
		return nil, nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		providerShutdown()
		return nil, nil, fmt.Errorf("metrics server startup timed out")
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		_ = provider.Shutdown(shutdownCtx)
	}
	return provider.Metrics(), shutdown, nil
}

func newOrganizeCmd() *cobra.Command {
	var (
		opts          runtimeOptions
		query         string
		maxMessages   int
		batchSize     int
		timeout       time.Duration
		labelsOnly    bool
		skipMigration bool
		reportJSON    string
		reportMD      string
		metricsAddr   string
	)

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Classify messages and apply hierarchy labels",
		Long: `Scan the mailbox, classify every message against the taxonomy rules,
ensure the label hierarchy exists, and apply the resulting label
changes in batches. Messages no rule can place are flagged for review
rather than guessed; legacy labels are replaced by their mapped
hierarchy labels unless --skip-migration is set.

Every run produces a report, even when it is cancelled or aborts.
'mailfold report' prints the latest one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			metrics, stopMetrics, err := startRunMetrics(ctx, metricsAddr)
			if err != nil {
				return err
			}
			defer stopMetrics()

			stack, err := buildMailboxStack(ctx, opts, metrics)
			if err != nil {
				return err
			}

			org, err := stack.newOrganizer(organizer.Config{
				Query:         query,
				BatchSize:     batchSize,
				MaxMessages:   maxMessages,
				MaxRunTime:    timeout,
				LabelsOnly:    labelsOnly,
				SkipMigration: skipMigration,
			})
			if err != nil {
				return err
			}

			report, runErr := org.Run(ctx)
			saveLatestReport(stack.logger, report)
			if err := exportReport(report, reportJSON, reportMD); err != nil {
				stack.logger.Warn("failed to export report", logging.Err(err))
			}
			fmt.Println(report.Summary())
			return runErr
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&query, "query", "", "Gmail search query narrowing which messages are scanned (default: whole mailbox)")
	cmd.Flags().IntVar(&maxMessages, "max-messages", 0, "Stop after scanning this many messages (0 = no limit)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Messages per label mutation batch (default and maximum: 100)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this long, e.g. 30m (0 = no deadline)")
	cmd.Flags().BoolVar(&labelsOnly, "labels-only", false, "Ensure the label hierarchy and stop without touching messages")
	cmd.Flags().BoolVar(&skipMigration, "skip-migration", false, "Apply new labels but never remove legacy ones")
	cmd.Flags().StringVar(&reportJSON, "report-json", "", "Also write the run report as JSON to this file")
	cmd.Flags().StringVar(&reportMD, "report-md", "", "Also write the run report as Markdown to this file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address for the duration of the run (empty: disabled)")

	return cmd
}
