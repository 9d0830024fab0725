// Package server provides the shared state behind the MCP serve session
// and the operational HTTP endpoints exposed during long runs.
//
// # Key Components
//
// ServerContext manages per-account Gmail services with lazy
// initialization and caching. Every account gets its own rate-limiting
// gateway, so the Gmail per-user quota is metered independently per
// mailbox. The context also builds organizers on demand (previews run
// against an ephemeral dry-run stack) and retains the latest organize
// report per account for the report tool and resource.
//
// MetricsServer serves Prometheus metrics on a dedicated port,
// isolated from the MCP transport. HealthChecker adds Kubernetes-style
// /healthz, /readyz and /healthz/detailed probes; the detailed probe
// reports uptime, the accounts this session has opened, and the size
// of the loaded taxonomy.
package server
