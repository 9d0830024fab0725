package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrOutcome   = "outcome"
	attrTool      = "tool"
	attrAccount   = "account"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics (health/metrics listener)
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram
	googleAPIRetriesTotal      metric.Int64Counter
	rateLimitWaitSeconds       metric.Float64Histogram

	// Organize pipeline metrics
	messagesProcessedTotal metric.Int64Counter
	labelsEnsuredTotal     metric.Int64Counter
	labelMutationsTotal    metric.Int64Counter
	organizeRunsTotal      metric.Int64Counter
	organizeRunDuration    metric.Float64Histogram
	activeRuns             metric.Int64UpDownCounter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Configuration
	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// Google API Metrics
	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.googleAPIRetriesTotal, err = meter.Int64Counter(
		"google_api_retries_total",
		metric.WithDescription("Total number of Google API retry attempts after transient failures"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_retries_total counter: %w", err)
	}

	m.rateLimitWaitSeconds, err = meter.Float64Histogram(
		"rate_limit_wait_seconds",
		metric.WithDescription("Time spent waiting for rate limit admission"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_wait_seconds histogram: %w", err)
	}

	// Organize Pipeline Metrics
	m.messagesProcessedTotal, err = meter.Int64Counter(
		"messages_processed_total",
		metric.WithDescription("Total number of messages processed by organize runs"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_processed_total counter: %w", err)
	}

	m.labelsEnsuredTotal, err = meter.Int64Counter(
		"labels_ensured_total",
		metric.WithDescription("Total number of labels resolved or created during hierarchy setup"),
		metric.WithUnit("{label}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create labels_ensured_total counter: %w", err)
	}

	m.labelMutationsTotal, err = meter.Int64Counter(
		"label_mutations_total",
		metric.WithDescription("Total number of message label mutations applied"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create label_mutations_total counter: %w", err)
	}

	m.organizeRunsTotal, err = meter.Int64Counter(
		"organize_runs_total",
		metric.WithDescription("Total number of organize runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create organize_runs_total counter: %w", err)
	}

	m.organizeRunDuration, err = meter.Float64Histogram(
		"organize_run_duration_seconds",
		metric.WithDescription("Organize run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1.0, 5.0, 15.0, 30.0, 60.0, 120.0, 300.0, 600.0, 1800.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create organize_run_duration_seconds histogram: %w", err)
	}

	m.activeRuns, err = meter.Int64UpDownCounter(
		"active_runs",
		metric.WithDescription("Number of organize runs currently in progress"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_runs gauge: %w", err)
	}

	// MCP Tool Metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail)
//   - operation: Operation name (labels.list, messages.get, messages.batchModify, etc.)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIRetry records a retry attempt after a transient API failure.
func (m *Metrics) RecordGoogleAPIRetry(ctx context.Context, service, operation string) {
	if m.googleAPIRetriesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
	}

	m.googleAPIRetriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitWait records time spent waiting for rate limit admission
// before an API operation was allowed to proceed.
func (m *Metrics) RecordRateLimitWait(ctx context.Context, operation string, wait time.Duration) {
	if m.rateLimitWaitSeconds == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
	}

	m.rateLimitWaitSeconds.Record(ctx, wait.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMessagesProcessed records messages handled by an organize run.
// Outcome should be one of: "labeled", "migrated", "flagged", "skipped", "failed"
func (m *Metrics) RecordMessagesProcessed(ctx context.Context, outcome string, count int64) {
	if m.messagesProcessedTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOutcome, outcome),
	}

	m.messagesProcessedTotal.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordLabelEnsured records a label hierarchy resolution.
// Result should be one of: "created", "existed"
func (m *Metrics) RecordLabelEnsured(ctx context.Context, result string) {
	if m.labelsEnsuredTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.labelsEnsuredTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLabelMutations records applied message label mutations.
// Status should be one of: "success", "error", "dry_run"
func (m *Metrics) RecordLabelMutations(ctx context.Context, status string, count int64) {
	if m.labelMutationsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.labelMutationsTotal.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordOrganizeRun records a completed organize run with its final status and duration.
func (m *Metrics) RecordOrganizeRun(ctx context.Context, status string, duration time.Duration) {
	if m.organizeRunsTotal == nil || m.organizeRunDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.organizeRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.organizeRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveRuns increments the active runs counter.
func (m *Metrics) IncrementActiveRuns(ctx context.Context) {
	if m.activeRuns == nil {
		return // Instrumentation not initialized
	}

	m.activeRuns.Add(ctx, 1)
}

// DecrementActiveRuns decrements the active runs counter.
func (m *Metrics) DecrementActiveRuns(ctx context.Context) {
	if m.activeRuns == nil {
		return // Instrumentation not initialized
	}

	m.activeRuns.Add(ctx, -1)
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "organize_run", "labels_ensure")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocationWithAccount records an MCP tool invocation with account info.
// This is the detailed version that includes account information when detailedLabels is enabled.
//
// Parameters:
//   - toolName: Name of the MCP tool
//   - status: Result status ("success" or "error")
//   - account: User account name (only included if detailedLabels is true)
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
