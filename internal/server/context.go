package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mailfold/mailfold/internal/gateway"
	"github.com/mailfold/mailfold/internal/gmail"
	"github.com/mailfold/mailfold/internal/instrumentation"
	"github.com/mailfold/mailfold/internal/logging"
	"github.com/mailfold/mailfold/internal/organizer"
	"github.com/mailfold/mailfold/internal/taxonomy"
)

// accountState pairs a Gmail service with the gateway that meters it.
// Each account gets its own gateway so one account's traffic cannot
// drain another's quota budget.
type accountState struct {
	svc *gmail.Service
	gw  *gateway.Gateway
}

// ServerContext holds the shared state of a serve session: the loaded
// taxonomy, lazily created per-account Gmail services, and the latest
// organize report per account.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	taxonomy   *taxonomy.Taxonomy
	gatewayCfg gateway.Config
	logger     *slog.Logger
	metrics    *instrumentation.Metrics

	mu       sync.RWMutex
	audit    *instrumentation.AuditLogger
	accounts map[string]*accountState
	reports  map[string]*organizer.Report
	shutdown bool
}

// NewServerContext creates a server context. The Gmail service for the
// default account is created eagerly when a cached token exists; other
// accounts are initialized on first use.
func NewServerContext(ctx context.Context, tax *taxonomy.Taxonomy, gatewayCfg gateway.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*ServerContext, error) {
	if tax == nil {
		return nil, fmt.Errorf("server context requires a taxonomy")
	}
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		taxonomy:   tax,
		gatewayCfg: gatewayCfg,
		logger:     logger,
		metrics:    metrics,
		accounts:   make(map[string]*accountState),
		reports:    make(map[string]*organizer.Report),
	}

	// Missing tokens are not fatal here; tools report the auth
	// instructions when an account is actually used.
	if gmail.HasToken() {
		if _, _, err := sc.ServiceForAccount("default"); err != nil {
			logger.Warn("failed to create Gmail service for default account", logging.Err(err))
		}
	}

	return sc, nil
}

// Context returns the server's lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Taxonomy returns the taxonomy this server session operates on.
func (sc *ServerContext) Taxonomy() *taxonomy.Taxonomy {
	return sc.taxonomy
}

// Metrics returns the metrics recorder, or nil when instrumentation is
// disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// SetAuditLogger installs the audit logger used for tool invocations.
func (sc *ServerContext) SetAuditLogger(audit *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.audit = audit
}

// AuditLogger returns the audit logger, or nil when audit logging is
// disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// ServiceForAccount returns the Gmail service and its gateway for an
// account, creating and caching them on first use. The account must
// have a cached OAuth token.
func (sc *ServerContext) ServiceForAccount(account string) (*gmail.Service, *gateway.Gateway, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if state, ok := sc.accounts[account]; ok {
		return state.svc, state.gw, nil
	}

	if !gmail.HasTokenForAccount(account) {
		return nil, nil, fmt.Errorf("no cached token for account %s; run 'mailfold auth --account %s' first", account, account)
	}

	gw := gateway.New(sc.gatewayCfg, logging.WithAccount(sc.logger, account), sc.metrics)
	svc, err := gmail.NewServiceForAccount(sc.ctx, account, gw)
	if err != nil {
		return nil, nil, err
	}

	sc.accounts[account] = &accountState{svc: svc, gw: gw}
	return svc, gw, nil
}

// Service returns the Gmail service for the default account.
func (sc *ServerContext) Service() (*gmail.Service, *gateway.Gateway, error) {
	return sc.ServiceForAccount("default")
}

// NewOrganizer builds an organizer for one pipeline pass. A preview
// pass gets its own dry-run gateway and service so the cached live
// stack is never switched into dry-run mode behind a caller's back.
func (sc *ServerContext) NewOrganizer(account string, cfg organizer.Config, dryRun bool) (*organizer.Organizer, error) {
	var (
		svc *gmail.Service
		gw  *gateway.Gateway
		err error
	)
	if dryRun {
		dryCfg := sc.gatewayCfg
		dryCfg.DryRun = true
		gw = gateway.New(dryCfg, logging.WithAccount(sc.logger, account), sc.metrics)
		svc, err = gmail.NewServiceForAccount(sc.ctx, account, gw)
	} else {
		svc, gw, err = sc.ServiceForAccount(account)
	}
	if err != nil {
		return nil, err
	}
	org, err := organizer.New(cfg, svc, gw, sc.taxonomy, sc.logger, sc.metrics)
	if err != nil {
		return nil, err
	}
	org.SetAuditLogger(sc.AuditLogger())
	return org, nil
}

// StoreReport retains the report of a finished run so it can be served
// later.
func (sc *ServerContext) StoreReport(account string, report *organizer.Report) {
	if report == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.reports[account] = report
}

// LatestReport returns the most recent report for an account.
func (sc *ServerContext) LatestReport(account string) (*organizer.Report, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	report, ok := sc.reports[account]
	return report, ok
}

// Accounts returns the accounts with an initialized service, sorted.
func (sc *ServerContext) Accounts() []string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	accounts := make([]string, 0, len(sc.accounts))
	for account := range sc.accounts {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than
// once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
