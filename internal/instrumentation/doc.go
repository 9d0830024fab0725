// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the mailfold organize pipeline and MCP server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for Gmail API calls, rate limiting, and organize runs
//   - Distributed tracing for run phases and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Gmail API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Gmail API operation durations
//   - google_api_retries_total: Counter of retry attempts after transient failures
//   - rate_limit_wait_seconds: Histogram of time spent waiting for rate limit admission
//
// Organize Pipeline Metrics:
//   - messages_processed_total: Counter of messages by outcome (labeled, skipped, failed)
//   - labels_ensured_total: Counter of hierarchy labels by result (created, existed)
//   - label_mutations_total: Counter of applied message label mutations by status
//   - organize_runs_total: Counter of organize runs by final status
//   - organize_run_duration_seconds: Histogram of organize run durations
//   - active_runs: Gauge of organize runs currently in progress
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - MCP tool invocations (tool.<name>)
//   - Gmail API calls (google.gmail.<operation>)
//   - Organize run phases
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mailfold)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "mailfold",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record a Gmail API operation
//	recorder.RecordGoogleAPIOperation(ctx, "gmail", "labels.list", "success", time.Since(start))
//
//	// Record an MCP tool invocation
//	recorder.RecordToolInvocation(ctx, "organize_run", "success", time.Since(start))
package instrumentation
